// Package gateway defines the abstract chat-gateway capability set that the
// journaling core depends on.
//
// The core never talks to a concrete chat protocol: it enumerates guilds,
// resolves channels by name, sends messages, attaches reactions, and
// suspends on explicit predicate-plus-timeout waits for replies. Concrete
// transports (the whatsapp package in production, the testutil fake in
// tests) implement this interface.
package gateway

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned by AwaitMessage and AwaitReaction when no
// qualifying event arrives within the wait window. A timeout is an expected
// outcome, handled by callers as an absent answer rather than a failure.
var ErrWaitTimeout = errors.New("no qualifying event before timeout")

// MessageID identifies a message previously sent through the gateway.
type MessageID string

// Guild is a community space reachable by the connected account.
type Guild struct {
	ID   string
	Name string
}

// Channel is a named conversation surface within a guild.
type Channel struct {
	ID      string
	GuildID string
	Name    string
}

// Member is one participant of a guild. Automated accounts (the bot itself,
// or peers flagged as bots by the transport) carry Bot=true and are skipped
// by the orchestrator.
type Member struct {
	ID   string
	Name string
	Bot  bool
}

// IncomingMessage is a text message received from a member.
type IncomingMessage struct {
	ChannelID string
	AuthorID  string
	Text      string
	At        time.Time
}

// Reaction is an emoji reaction a member attached to a message.
type Reaction struct {
	ChannelID string
	MessageID MessageID
	AuthorID  string
	Emoji     string
	At        time.Time
}

// MessageFilter selects qualifying incoming messages for a wait.
type MessageFilter struct {
	ChannelID string
	AuthorID  string
}

// Match reports whether the message qualifies.
func (f MessageFilter) Match(m IncomingMessage) bool {
	if f.ChannelID != "" && m.ChannelID != f.ChannelID {
		return false
	}
	if f.AuthorID != "" && m.AuthorID != f.AuthorID {
		return false
	}
	return true
}

// ReactionFilter selects qualifying reactions for a wait.
type ReactionFilter struct {
	MessageID MessageID
	AuthorID  string
	Emojis    []string
}

// Match reports whether the reaction qualifies.
func (f ReactionFilter) Match(r Reaction) bool {
	if f.MessageID != "" && r.MessageID != f.MessageID {
		return false
	}
	if f.AuthorID != "" && r.AuthorID != f.AuthorID {
		return false
	}
	if len(f.Emojis) > 0 {
		ok := false
		for _, e := range f.Emojis {
			if r.Emoji == e {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Gateway is the capability set the journaling core requires from a chat
// transport.
type Gateway interface {
	// Guilds enumerates the community spaces reachable by the account.
	Guilds(ctx context.Context) ([]Guild, error)

	// ResolveChannel finds a channel by human-readable name within a guild.
	// It returns (nil, nil) when no channel with that name exists.
	ResolveChannel(ctx context.Context, guildID, name string) (*Channel, error)

	// Members lists the participants of a guild.
	Members(ctx context.Context, guildID string) ([]Member, error)

	// Send delivers a text message to a channel and returns its id.
	Send(ctx context.Context, channelID, text string) (MessageID, error)

	// React attaches an emoji reaction affordance to a sent message.
	React(ctx context.Context, channelID string, id MessageID, emoji string) error

	// AwaitMessage suspends until a message matching the filter arrives or
	// the timeout elapses. On timeout it returns ErrWaitTimeout.
	AwaitMessage(ctx context.Context, filter MessageFilter, timeout time.Duration) (*IncomingMessage, error)

	// AwaitReaction suspends until a reaction matching the filter arrives or
	// the timeout elapses. On timeout it returns ErrWaitTimeout.
	AwaitReaction(ctx context.Context, filter ReactionFilter, timeout time.Duration) (*Reaction, error)
}
