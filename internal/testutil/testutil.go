// Package testutil provides common test utilities and helpers for
// JournalPipe tests, chiefly a scripted in-memory chat gateway.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/journalpipe/journalpipe/internal/gateway"
)

// SentMessage records one message sent through the fake gateway.
type SentMessage struct {
	ChannelID string
	Text      string
	ID        gateway.MessageID
}

// SentReaction records one reaction affordance attached through the fake gateway.
type SentReaction struct {
	ChannelID string
	MessageID gateway.MessageID
	Emoji     string
}

// FakeGateway is a scripted gateway.Gateway for tests. Guilds, channels, and
// members are fixed up front; member replies and habit reactions are scripted,
// and waits that have no script entry resolve immediately as timeouts so
// tests never sleep.
type FakeGateway struct {
	mu sync.Mutex

	GuildList       []gateway.Guild
	ChannelsByGuild map[string][]gateway.Channel
	MembersByGuild  map[string][]gateway.Member

	// Replies are consumed in order by AwaitMessage calls with a matching filter.
	Replies []gateway.IncomingMessage
	// ReactionsByPrompt scripts a member's reaction emoji, keyed by the text
	// of the message being reacted to (the habit name).
	ReactionsByPrompt map[string]string
	// SendErrFor injects a send failure for messages with the given text.
	SendErrFor map[string]error
	// ReactionWaitErrFor injects a wait fault (not a timeout) for reactions
	// on messages with the given text.
	ReactionWaitErrFor map[string]error
	// GuildsErr makes Guilds fail.
	GuildsErr error

	Sent    []SentMessage
	Reacted []SentReaction
	nextID  int
}

// NewFakeGateway creates an empty scripted gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		ChannelsByGuild:    make(map[string][]gateway.Channel),
		MembersByGuild:     make(map[string][]gateway.Member),
		ReactionsByPrompt:  make(map[string]string),
		SendErrFor:         make(map[string]error),
		ReactionWaitErrFor: make(map[string]error),
	}
}

// AddGuild registers a guild with one channel and its members.
func (f *FakeGateway) AddGuild(guildID, guildName, channelName string, members ...gateway.Member) {
	f.GuildList = append(f.GuildList, gateway.Guild{ID: guildID, Name: guildName})
	f.ChannelsByGuild[guildID] = append(f.ChannelsByGuild[guildID], gateway.Channel{
		ID:      guildID + "/" + channelName,
		GuildID: guildID,
		Name:    channelName,
	})
	f.MembersByGuild[guildID] = append(f.MembersByGuild[guildID], members...)
}

// ScriptReply queues a member reply to be consumed by a later AwaitMessage.
func (f *FakeGateway) ScriptReply(channelID, authorID, text string) {
	f.Replies = append(f.Replies, gateway.IncomingMessage{
		ChannelID: channelID,
		AuthorID:  authorID,
		Text:      text,
		At:        time.Now(),
	})
}

func (f *FakeGateway) Guilds(ctx context.Context) ([]gateway.Guild, error) {
	if f.GuildsErr != nil {
		return nil, f.GuildsErr
	}
	return f.GuildList, nil
}

func (f *FakeGateway) ResolveChannel(ctx context.Context, guildID, name string) (*gateway.Channel, error) {
	for _, ch := range f.ChannelsByGuild[guildID] {
		if ch.Name == name {
			c := ch
			return &c, nil
		}
	}
	return nil, nil
}

func (f *FakeGateway) Members(ctx context.Context, guildID string) ([]gateway.Member, error) {
	return f.MembersByGuild[guildID], nil
}

func (f *FakeGateway) Send(ctx context.Context, channelID, text string) (gateway.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.SendErrFor[text]; ok {
		return "", err
	}
	f.nextID++
	id := gateway.MessageID(fmt.Sprintf("msg-%d", f.nextID))
	f.Sent = append(f.Sent, SentMessage{ChannelID: channelID, Text: text, ID: id})
	return id, nil
}

func (f *FakeGateway) React(ctx context.Context, channelID string, id gateway.MessageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reacted = append(f.Reacted, SentReaction{ChannelID: channelID, MessageID: id, Emoji: emoji})
	return nil
}

// AwaitMessage consumes the first scripted reply matching the filter, or
// resolves immediately as a timeout.
func (f *FakeGateway) AwaitMessage(ctx context.Context, filter gateway.MessageFilter, timeout time.Duration) (*gateway.IncomingMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.Replies {
		if filter.Match(m) {
			f.Replies = append(f.Replies[:i], f.Replies[i+1:]...)
			msg := m
			return &msg, nil
		}
	}
	return nil, gateway.ErrWaitTimeout
}

// AwaitReaction resolves against the reaction scripted for the text of the
// awaited message, or resolves immediately as a timeout.
func (f *FakeGateway) AwaitReaction(ctx context.Context, filter gateway.ReactionFilter, timeout time.Duration) (*gateway.Reaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prompt string
	var channelID string
	for _, sent := range f.Sent {
		if sent.ID == filter.MessageID {
			prompt = sent.Text
			channelID = sent.ChannelID
			break
		}
	}
	if err, ok := f.ReactionWaitErrFor[prompt]; ok {
		return nil, err
	}
	emoji, ok := f.ReactionsByPrompt[prompt]
	if !ok {
		return nil, gateway.ErrWaitTimeout
	}

	r := gateway.Reaction{
		ChannelID: channelID,
		MessageID: filter.MessageID,
		AuthorID:  filter.AuthorID,
		Emoji:     emoji,
		At:        time.Now(),
	}
	if !filter.Match(r) {
		return nil, gateway.ErrWaitTimeout
	}
	return &r, nil
}

// SentTexts returns the text of every message sent, in order.
func (f *FakeGateway) SentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	texts := make([]string, len(f.Sent))
	for i, s := range f.Sent {
		texts[i] = s.Text
	}
	return texts
}
