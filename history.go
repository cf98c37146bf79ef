package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
)

const (
	historyPageSize  = 100
	unknownAuthor    = "Unknown"
	messageEventType = "message"
)

// Message is one conversational event in a channel
type Message struct {
	ID           string // Slack ts, unique within the channel
	AuthorID     string
	Text         string
	ThreadRootID string
	Type         string
	Subtype      string
}

// IsOrdinary reports whether the message is a plain user message
func (m Message) IsOrdinary() bool {
	return m.Type == messageEventType && m.Subtype == ""
}

// IsThreadRoot reports whether the message starts a thread
func (m Message) IsThreadRoot() bool {
	return m.ThreadRootID != "" && m.ThreadRootID == m.ID
}

// Author returns the author id or the Unknown sentinel
func (m Message) Author() string {
	if m.AuthorID == "" {
		return unknownAuthor
	}
	return m.AuthorID
}

// Time converts the Slack ts into a time value
func (m Message) Time() time.Time {
	var sec, usec int64
	if _, err := fmt.Sscanf(m.ID, "%d.%d", &sec, &usec); err != nil {
		return time.Time{}
	}
	return time.Unix(sec, usec*int64(time.Microsecond))
}

func messageFromSlack(msg slack.Message) Message {
	return Message{
		ID:           msg.Timestamp,
		AuthorID:     msg.User,
		Text:         msg.Text,
		ThreadRootID: msg.ThreadTimestamp,
		Type:         msg.Type,
		Subtype:      msg.SubType,
	}
}

// slackTimestamp formats t the way Slack formats message ids
func slackTimestamp(t time.Time) string {
	return fmt.Sprintf("%d.%06d", t.Unix(), t.Nanosecond()/1000)
}

// HistoryFetcher pulls a trailing window of a channel's history, threads included
type HistoryFetcher struct {
	api    SlackAPI
	logger zerolog.Logger
	now    func() time.Time
}

// NewHistoryFetcher creates a fetcher over the given Slack API
func NewHistoryFetcher(api SlackAPI, logger zerolog.Logger) *HistoryFetcher {
	return &HistoryFetcher{
		api:    api,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

// FetchHistory returns every ordinary message posted in the last windowDays days.
// Thread replies follow their root. A missing channel yields an empty result.
func (hf *HistoryFetcher) FetchHistory(ctx context.Context, channelID string, windowDays int) ([]Message, error) {
	oldest := slackTimestamp(hf.now().Add(-time.Duration(windowDays) * 24 * time.Hour))

	hf.logger.Debug().
		Str("channelID", channelID).
		Str("oldest", oldest).
		Int("windowDays", windowDays).
		Msg("Fetching conversation history")

	messages := make([]Message, 0)
	seen := make(map[string]bool)
	add := func(msg Message) {
		if seen[msg.ID] {
			hf.logger.Trace().Str("channelID", channelID).Str("timestamp", msg.ID).Msg("Skipping duplicate message")
			return
		}
		seen[msg.ID] = true
		messages = append(messages, msg)
	}

	cursor := ""
	pageCount := 0
	for {
		pageCount++
		history, err := hf.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channelID,
			Oldest:    oldest,
			Limit:     historyPageSize,
			Cursor:    cursor,
		})
		if err != nil {
			if isChannelNotFound(err) {
				hf.logger.Warn().Str("channelID", channelID).Msg("Channel not found, skipping")
				return []Message{}, nil
			}
			hf.logger.Error().
				Err(err).
				Str("channelID", channelID).
				Int("page", pageCount).
				Msg("Error getting history for channel")
			return nil, fmt.Errorf("failed to get history for channel %s: %w", channelID, err)
		}

		hf.logger.Trace().
			Str("channelID", channelID).
			Int("page", pageCount).
			Int("message_count", len(history.Messages)).
			Bool("hasMore", history.HasMore).
			Msg("Fetched history page")

		for _, raw := range history.Messages {
			msg := messageFromSlack(raw)
			if !msg.IsOrdinary() {
				hf.logger.Trace().
					Str("timestamp", msg.ID).
					Str("type", msg.Type).
					Str("subtype", msg.Subtype).
					Msg("Skipping non-conversational message")
				continue
			}

			add(msg)

			if msg.IsThreadRoot() {
				for _, reply := range hf.fetchReplies(ctx, channelID, msg.ID, oldest) {
					add(reply)
				}
			}
		}

		cursor = history.ResponseMetaData.NextCursor
		if !history.HasMore || cursor == "" {
			break
		}
	}

	hf.logger.Info().
		Str("channelID", channelID).
		Int("message_count", len(messages)).
		Int("pages", pageCount).
		Msg("Fetched messages from channel")

	return messages, nil
}

// fetchReplies returns the ordinary replies of a thread without its root.
// On any error the whole thread's replies are dropped.
func (hf *HistoryFetcher) fetchReplies(ctx context.Context, channelID, threadTS, oldest string) []Message {
	hf.logger.Debug().
		Str("channelID", channelID).
		Str("threadTS", threadTS).
		Msg("Fetching thread replies")

	var replies []Message
	cursor := ""
	for page := 0; ; page++ {
		msgs, hasMore, nextCursor, err := hf.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: threadTS,
			Oldest:    oldest,
			Cursor:    cursor,
		})
		if err != nil {
			hf.logger.Error().
				Err(err).
				Str("channelID", channelID).
				Str("threadTS", threadTS).
				Msg("Error getting thread replies, skipping thread")
			return nil
		}

		for i, raw := range msgs {
			// The root comes back as the first entry and is already held
			if (page == 0 && i == 0) || raw.Timestamp == threadTS {
				continue
			}
			reply := messageFromSlack(raw)
			if !reply.IsOrdinary() {
				hf.logger.Trace().
					Str("replyTS", reply.ID).
					Str("subtype", reply.Subtype).
					Msg("Skipping non-conversational reply")
				continue
			}
			replies = append(replies, reply)
		}

		if !hasMore || nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	hf.logger.Trace().
		Str("threadTS", threadTS).
		Int("replyCount", len(replies)).
		Msg("Fetched thread replies")
	return replies
}
