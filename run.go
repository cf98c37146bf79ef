package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Runner drives one summarization pass over the configured channels
type Runner struct {
	identities *IdentityCache
	channels   *ChannelResolver
	history    *HistoryFetcher
	summarizer Summarizer
	channelIDs []string
	windowDays int
	outputDir  string
	logger     zerolog.Logger
	now        func() time.Time
}

// NewRunner wires the components for a run
func NewRunner(cfg *Config, api SlackAPI, summarizer Summarizer, logger zerolog.Logger) (*Runner, error) {
	identities, err := NewIdentityCache(api, cfg.Cache.Dir, cfg.Cache.TTL, logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		identities: identities,
		channels:   NewChannelResolver(api, logger),
		history:    NewHistoryFetcher(api, logger),
		summarizer: summarizer,
		channelIDs: cfg.Slack.Channels,
		windowDays: cfg.Summary.DurationDays,
		outputDir:  cfg.Summary.OutputDir,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Run processes every channel in order. A failing channel does not stop the
// others; the failures are returned together once the loop is done. An
// authentication failure stops the run at once.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Int("channel_count", len(r.channelIDs)).
		Int("windowDays", r.windowDays).
		Msg("Starting Slack Summarizer")

	users := r.identities.Resolve(ctx)
	r.channels.Resolve(ctx)

	var errs []error
	written := 0
	for _, channelID := range r.channelIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, err := r.processChannel(ctx, channelID, users)
		if err != nil {
			if errors.Is(err, ErrAuth) || errors.Is(err, context.Canceled) {
				return err
			}
			r.logger.Error().Err(err).Str("channelID", channelID).Msg("Failed to summarize channel")
			errs = append(errs, fmt.Errorf("channel %s: %w", channelID, err))
			continue
		}
		if path != "" {
			written++
		}
	}

	r.logger.Info().
		Int("summaries", written).
		Int("failed", len(errs)).
		Msg("Run completed")

	return errors.Join(errs...)
}

// processChannel returns the artifact path, or "" when the channel had nothing to summarize
func (r *Runner) processChannel(ctx context.Context, channelID string, users map[string]string) (string, error) {
	channelName := r.channels.DisplayName(ctx, channelID)
	logger := r.logger.With().Str("channelID", channelID).Str("channelName", channelName).Logger()
	logger.Info().Msg("Processing channel")

	messages, err := r.history.FetchHistory(ctx, channelID, r.windowDays)
	if err != nil {
		if aerr := authError(err); aerr != nil {
			return "", aerr
		}
		return "", err
	}
	if len(messages) == 0 {
		logger.Warn().Msg("No messages found in channel, skipping summary")
		return "", nil
	}

	transcript := FormatTranscript(messages, users)
	logger.Debug().Int("message_count", len(messages)).Msg("Transcript built")

	body, err := r.summarizer.Summarize(ctx, transcript)
	if err != nil {
		return "", err
	}

	path, err := WriteArtifact(r.outputDir, Artifact{
		ChannelID:    channelID,
		ChannelName:  channelName,
		WindowDays:   r.windowDays,
		MessageCount: len(messages),
		GeneratedAt:  r.now(),
		Body:         body,
	})
	if err != nil {
		return "", err
	}

	logger.Info().Str("path", path).Int("message_count", len(messages)).Msg("Summary saved")
	return path, nil
}
