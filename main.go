package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "slack-summarizer",
	Short: "Summarize recent Slack channel activity",
	Long: `Fetches the recent history of every configured Slack channel, threads
included, and writes one Markdown digest per channel generated with OpenAI.

Requires SLACK_TOKEN (user token) and OPENAI_API_KEY, either exported or in
a .env file, plus a YAML config listing the channel ids.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := NewSlackClient(cfg.SlackToken, cfg.Slack.RequestsPerMinute, logger)
		if err := checkAuth(ctx, api, logger); err != nil {
			logger.Error().Err(err).Msg("Authentication failed")
			return err
		}

		digests := NewDigestGenerator(cfg.OpenAI, cfg.OpenAIAPIKey, logger)
		if err := digests.CheckAuth(ctx); err != nil {
			logger.Error().Err(err).Msg("OpenAI authentication failed")
			return err
		}

		runner, err := NewRunner(cfg, api, digests, logger)
		if err != nil {
			logger.Error().Err(err).Msg("Error creating runner")
			return err
		}
		if err := runner.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Run finished with errors")
			return err
		}
		return nil
	},
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels the token can see",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, closeLog, err := setup()
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		api := NewSlackClient(cfg.SlackToken, cfg.Slack.RequestsPerMinute, logger)
		if err := checkAuth(ctx, api, logger); err != nil {
			return err
		}

		mapping := NewChannelResolver(api, logger).Resolve(ctx)
		ids := make([]string, 0, len(mapping))
		for id := range mapping {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return mapping[ids[i]] < mapping[ids[j]] })

		out := cmd.OutOrStdout()
		for _, id := range ids {
			fmt.Fprintf(out, "%s\t%s\n", id, mapping[id])
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", DefaultConfigPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	rootCmd.AddCommand(channelsCmd)
}

// setup loads the config and builds the run logger
func setup() (*Config, zerolog.Logger, func(), error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, closer, err := newLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}
	logger = logger.With().Str("run_id", uuid.NewString()).Logger()

	if !looksLikeSlackToken(cfg.SlackToken) {
		logger.Warn().Msg("SLACK_TOKEN does not look like a Slack token (expected an xoxp- user token)")
	}

	logger.Info().
		Str("slackToken", redact(cfg.SlackToken)).
		Str("openaiKey", redact(cfg.OpenAIAPIKey)).
		Strs("channels", cfg.Slack.Channels).
		Int("durationDays", cfg.Summary.DurationDays).
		Str("outputDir", cfg.Summary.OutputDir).
		Str("cacheDir", cfg.Cache.Dir).
		Dur("cacheTTL", cfg.Cache.TTL).
		Str("model", cfg.OpenAI.Model).
		Msg("Configuration loaded")

	return cfg, logger, func() { _ = closer.Close() }, nil
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: maskingWriter{out: os.Stderr}}).With().Timestamp().Logger()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Slack Summarizer failed")
	}
}
