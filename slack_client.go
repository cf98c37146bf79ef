package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// ErrAuth marks a credential that Slack or OpenAI rejected, or that lacks scopes
var ErrAuth = errors.New("authentication failed")

// requiredScopes lists every user token scope the summarizer calls need
var requiredScopes = []string{
	"channels:read",
	"channels:history",
	"groups:read",
	"groups:history",
	"mpim:read",
	"mpim:history",
	"im:read",
	"im:history",
	"users:read",
}

// SlackAPI is the subset of the slack-go client used by the summarizer
type SlackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
}

// slackLogAdapter adapts zerolog to slack-go's log interface
type slackLogAdapter struct {
	logger zerolog.Logger
}

func (a *slackLogAdapter) Output(calldepth int, s string) error {
	a.logger.Debug().Msg(s)
	return nil
}

// NewSlackClient creates a slack-go client that logs through the given logger
// and waits on a shared limiter before every call.
func NewSlackClient(token string, requestsPerMinute int, logger zerolog.Logger) SlackAPI {
	client := slack.New(
		token,
		slack.OptionLog(&slackLogAdapter{logger: logger.With().Str("component", "slack-api").Logger()}),
	)
	return newPacedSlack(client, requestsPerMinute)
}

// pacedSlack delays calls to stay within a per-minute budget. It never retries.
type pacedSlack struct {
	api     SlackAPI
	limiter *rate.Limiter
}

func newPacedSlack(api SlackAPI, requestsPerMinute int) *pacedSlack {
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(requestsPerMinute))
	}
	return &pacedSlack{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *pacedSlack) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.api.AuthTestContext(ctx)
}

func (p *pacedSlack) GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.api.GetUsersContext(ctx, options...)
}

func (p *pacedSlack) GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	return p.api.GetConversationsContext(ctx, params)
}

func (p *pacedSlack) GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.api.GetConversationInfoContext(ctx, input)
}

func (p *pacedSlack) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.api.GetConversationHistoryContext(ctx, params)
}

func (p *pacedSlack) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, false, "", err
	}
	return p.api.GetConversationRepliesContext(ctx, params)
}

// slackErrorCode extracts the Slack error code ("channel_not_found", ...) from err
func slackErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) {
		return slackErr.Err
	}
	return err.Error()
}

func isChannelNotFound(err error) bool {
	return strings.Contains(slackErrorCode(err), "channel_not_found")
}

// authError converts Slack credential failures into ErrAuth. Other errors are returned as nil.
func authError(err error) error {
	code := slackErrorCode(err)
	switch {
	case strings.Contains(code, "missing_scope"):
		return fmt.Errorf("%w: slack token is missing required scopes, the Slack app needs: %s",
			ErrAuth, strings.Join(requiredScopes, ", "))
	case strings.Contains(code, "invalid_auth"),
		strings.Contains(code, "not_authed"),
		strings.Contains(code, "token_revoked"),
		strings.Contains(code, "token_expired"),
		strings.Contains(code, "account_inactive"):
		return fmt.Errorf("%w: slack token is invalid or expired (%s)", ErrAuth, code)
	}
	return nil
}

// checkAuth verifies the token before any channel is processed
func checkAuth(ctx context.Context, api SlackAPI, logger zerolog.Logger) error {
	logger.Debug().Msg("Testing authentication with Slack")
	resp, err := api.AuthTestContext(ctx)
	if err != nil {
		if aerr := authError(err); aerr != nil {
			return aerr
		}
		return fmt.Errorf("auth test failed: %w", err)
	}

	logger.Info().
		Str("user", resp.User).
		Str("userID", resp.UserID).
		Str("team", resp.Team).
		Str("teamID", resp.TeamID).
		Msg("Connected to Slack")
	return nil
}
