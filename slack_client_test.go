package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackErrorCode(t *testing.T) {
	wrapped := fmt.Errorf("failed to get history: %w", slack.SlackErrorResponse{Err: "channel_not_found"})
	assert.Equal(t, "channel_not_found", slackErrorCode(wrapped))
	assert.True(t, isChannelNotFound(wrapped))

	assert.True(t, isChannelNotFound(errors.New("slack: channel_not_found")))
	assert.False(t, isChannelNotFound(errors.New("timeout")))
	assert.Empty(t, slackErrorCode(nil))
}

func TestAuthError(t *testing.T) {
	tests := []struct {
		code     string
		wantAuth bool
	}{
		{"invalid_auth", true},
		{"not_authed", true},
		{"token_revoked", true},
		{"account_inactive", true},
		{"missing_scope", true},
		{"channel_not_found", false},
		{"ratelimited", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := authError(slack.SlackErrorResponse{Err: tt.code})
			if !tt.wantAuth {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrAuth)
		})
	}

	t.Run("missing scope lists every required scope", func(t *testing.T) {
		err := authError(slack.SlackErrorResponse{Err: "missing_scope"})
		for _, scope := range requiredScopes {
			assert.Contains(t, err.Error(), scope)
		}
	})
}

func TestCheckAuth(t *testing.T) {
	require.NoError(t, checkAuth(context.Background(), &fakeSlack{}, zerolog.Nop()))

	err := checkAuth(context.Background(), &fakeSlack{authErr: slack.SlackErrorResponse{Err: "invalid_auth"}}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrAuth)

	err = checkAuth(context.Background(), &fakeSlack{authErr: errors.New("dial tcp: no route")}, zerolog.Nop())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuth)
}

func TestPacedSlack(t *testing.T) {
	t.Run("passes calls through", func(t *testing.T) {
		fake := &fakeSlack{}
		fake.conversationsFn = func(params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
			return []slack.Channel{slackChannel("C1", "general")}, "", nil
		}
		paced := newPacedSlack(fake, 0)

		channels, _, err := paced.GetConversationsContext(context.Background(), &slack.GetConversationsParameters{})
		require.NoError(t, err)
		assert.Len(t, channels, 1)

		_, err = paced.GetConversationHistoryContext(context.Background(), &slack.GetConversationHistoryParameters{ChannelID: "C1"})
		require.NoError(t, err)
		assert.Len(t, fake.historyCalls, 1)
	})

	t.Run("cancelled context stops the call before it is made", func(t *testing.T) {
		fake := &fakeSlack{}
		paced := newPacedSlack(fake, 1)
		// Drain the burst so the next call has to wait
		_, _ = paced.GetUsersContext(context.Background())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := paced.GetUsersContext(ctx)
		require.Error(t, err)
		assert.Equal(t, 1, fake.usersCalls)
	})
}
