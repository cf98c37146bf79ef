package main

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const channelPageSize = 1000

// ChannelResolver maps channel ids to names. Nothing is cached between runs.
type ChannelResolver struct {
	api     SlackAPI
	logger  zerolog.Logger
	mapping map[string]string
}

// NewChannelResolver creates a resolver over the given Slack API
func NewChannelResolver(api SlackAPI, logger zerolog.Logger) *ChannelResolver {
	return &ChannelResolver{
		api:     api,
		logger:  logger.With().Str("component", "channels").Logger(),
		mapping: map[string]string{},
	}
}

// Resolve lists every public and private channel the token can see.
// Any failure yields an empty mapping, never a partial one.
func (cr *ChannelResolver) Resolve(ctx context.Context) map[string]string {
	mapping := make(map[string]string)

	cursor := ""
	for {
		channels, nextCursor, err := cr.api.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:  []string{"public_channel", "private_channel"},
			Limit:  channelPageSize,
			Cursor: cursor,
		})
		if err != nil {
			cr.logger.Error().Err(err).Str("cursor", cursor).Msg("Failed to fetch channel mapping")
			cr.mapping = map[string]string{}
			return cr.mapping
		}

		for _, channel := range channels {
			mapping[channel.ID] = channel.Name
			cr.logger.Trace().Str("id", channel.ID).Str("name", channel.Name).Msg("Added channel")
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	cr.logger.Info().Int("channel_count", len(mapping)).Msg("Fetched channel mapping")
	cr.mapping = mapping
	return mapping
}

// DisplayName returns a human-readable name for a channel: the bulk
// mapping first, then a per-channel lookup, then the raw id.
func (cr *ChannelResolver) DisplayName(ctx context.Context, channelID string) string {
	if name, ok := cr.mapping[channelID]; ok && name != "" {
		return name
	}

	channel, err := cr.api.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		cr.logger.Warn().Err(err).Str("channelID", channelID).Msg("Failed to get channel info, using id as name")
		return channelID
	}
	if channel == nil || channel.Name == "" {
		return channelID
	}
	return channel.Name
}
