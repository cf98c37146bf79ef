package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

const digestPrompt = `You are a Slack channel summarizer. Analyze the following Slack channel logs and write a Markdown summary covering three aspects:

1. **Archived Tasks:** tasks that were completed and archived.
2. **Conversations & Resolutions:** important conversations and the decisions or resolutions reached.
3. **Open Issues/Items to Address:** questions or topics raised that still need attention.

Additional instructions:
- Name the users involved in every task, conversation or issue, using their display names.
- Use clear headings and bullet points.
- Omit a section entirely when it would be empty.
- Include timestamps for important events.

Follow this structure:

# Slack Channel Summary

## Archived Tasks
- **Task:** Brief description or outcome.
  - **Involved Users:** User Name 1, User Name 2

## Conversations & Resolutions
- **Topic:** Summary of the conversation and the resolution reached.
  - **Participants:** User Name 1, User Name 4

## Open Issues/Items to Address
- **Issue:** Description of the issue and any pending actions.
  - **Reported/Discussed By:** User Name 1, User Name 5

Here are the messages to summarize:

%s`

// Summarizer turns a channel transcript into Markdown
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// DigestGenerator summarizes transcripts with the OpenAI chat completion API
type DigestGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      zerolog.Logger
}

// NewDigestGenerator creates a generator for the given OpenAI settings
func NewDigestGenerator(cfg OpenAIConfig, apiKey string, logger zerolog.Logger) *DigestGenerator {
	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &DigestGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger.With().Str("component", "digest").Logger(),
	}
}

// Summarize sends the transcript to the model and returns the generated digest
func (dg *DigestGenerator) Summarize(ctx context.Context, transcript string) (string, error) {
	dg.logger.Info().
		Str("model", dg.model).
		Int("transcript_bytes", len(transcript)).
		Msg("Generating summary with OpenAI")

	resp, err := dg.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: dg.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(digestPrompt, transcript),
			},
		},
		MaxTokens:   dg.maxTokens,
		Temperature: dg.temperature,
	})
	if err != nil {
		if aerr := openAIAuthError(err); aerr != nil {
			return "", aerr
		}
		return "", fmt.Errorf("error generating summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("error generating summary: no choices returned")
	}

	dg.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("Summary generated")

	return resp.Choices[0].Message.Content, nil
}

// CheckAuth lists the available models to verify the API key before any channel is fetched
func (dg *DigestGenerator) CheckAuth(ctx context.Context) error {
	dg.logger.Debug().Msg("Testing OpenAI API connection")
	if _, err := dg.client.ListModels(ctx); err != nil {
		if aerr := openAIAuthError(err); aerr != nil {
			return aerr
		}
		return fmt.Errorf("openai connection test failed: %w", err)
	}
	dg.logger.Debug().Msg("OpenAI API connection successful")
	return nil
}

// openAIAuthError converts a rejected API key into ErrAuth. Other errors are returned as nil.
func openAIAuthError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: openai api key is invalid or lacks access (HTTP %d): %v", ErrAuth, status, err)
	}
	return nil
}
