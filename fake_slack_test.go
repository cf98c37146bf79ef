package main

import (
	"context"
	"errors"

	"github.com/slack-go/slack"
)

// fakeSlack scripts SlackAPI responses and records the calls it receives
type fakeSlack struct {
	historyFn       func(params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	repliesFn       func(params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	usersFn         func() ([]slack.User, error)
	conversationsFn func(params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	infoFn          func(channelID string) (*slack.Channel, error)
	authErr         error

	historyCalls       []slack.GetConversationHistoryParameters
	repliesCalls       []slack.GetConversationRepliesParameters
	usersCalls         int
	conversationsCalls int
	infoCalls          int
}

func (f *fakeSlack) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return &slack.AuthTestResponse{User: "tester", UserID: "U0", Team: "team", TeamID: "T0"}, nil
}

func (f *fakeSlack) GetUsersContext(ctx context.Context, options ...slack.GetUsersOption) ([]slack.User, error) {
	f.usersCalls++
	if f.usersFn == nil {
		return nil, errors.New("users not scripted")
	}
	return f.usersFn()
}

func (f *fakeSlack) GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	f.conversationsCalls++
	if f.conversationsFn == nil {
		return nil, "", nil
	}
	return f.conversationsFn(params)
}

func (f *fakeSlack) GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error) {
	f.infoCalls++
	if f.infoFn == nil {
		return nil, slack.SlackErrorResponse{Err: "channel_not_found"}
	}
	return f.infoFn(input.ChannelID)
}

func (f *fakeSlack) GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	f.historyCalls = append(f.historyCalls, *params)
	if f.historyFn == nil {
		return historyPage(false, ""), nil
	}
	return f.historyFn(params)
}

func (f *fakeSlack) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	f.repliesCalls = append(f.repliesCalls, *params)
	if f.repliesFn == nil {
		return nil, false, "", nil
	}
	return f.repliesFn(params)
}

func historyPage(hasMore bool, nextCursor string, msgs ...slack.Message) *slack.GetConversationHistoryResponse {
	resp := &slack.GetConversationHistoryResponse{
		HasMore:  hasMore,
		Messages: msgs,
	}
	resp.ResponseMetaData.NextCursor = nextCursor
	return resp
}

func slackMsg(ts, user, text string) slack.Message {
	return slack.Message{Msg: slack.Msg{Type: "message", Timestamp: ts, User: user, Text: text}}
}

func threadRoot(ts, user, text string) slack.Message {
	m := slackMsg(ts, user, text)
	m.ThreadTimestamp = ts
	return m
}

func threadReply(ts, rootTS, user, text string) slack.Message {
	m := slackMsg(ts, user, text)
	m.ThreadTimestamp = rootTS
	return m
}

func withSubtype(m slack.Message, subtype string) slack.Message {
	m.SubType = subtype
	return m
}

func slackChannel(id, name string) slack.Channel {
	var ch slack.Channel
	ch.ID = id
	ch.Name = name
	return ch
}

func messageIDs(msgs []Message) []string {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}
