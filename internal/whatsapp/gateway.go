package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/journalpipe/journalpipe/internal/gateway"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// Gateway adapts a WhatsApp account to the abstract chat gateway.
//
// Mapping: every joined group chat is presented as a guild carrying exactly
// one channel named after the group's subject, and the group participants
// (minus the bot's own account) are the guild members. The orchestrator's
// channel-by-name resolution therefore selects the groups whose subject
// matches the configured journaling channel.
type Gateway struct {
	client  *Client
	waiters *gateway.Waiters

	mu     sync.Mutex
	groups map[string]*types.GroupInfo // guild id -> cached group info
}

// NewGateway wraps a connected Client.
func NewGateway(client *Client) *Gateway {
	return &Gateway{
		client:  client,
		waiters: gateway.NewWaiters(),
		groups:  make(map[string]*types.GroupInfo),
	}
}

// Start registers the event handler feeding incoming messages and reactions
// into the waiter registry. It returns immediately.
func (g *Gateway) Start(ctx context.Context) error {
	wa := g.client.GetClient()
	if wa == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	wa.AddEventHandler(g.handleEvent)
	slog.Debug("WhatsApp gateway event handler registered")
	return nil
}

// Guilds lists the joined group chats.
func (g *Gateway) Guilds(ctx context.Context) ([]gateway.Guild, error) {
	groups, err := g.client.GetClient().GetJoinedGroups(ctx)
	if err != nil {
		slog.Error("Failed to list joined groups", "error", err)
		return nil, fmt.Errorf("failed to list joined groups: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	guilds := make([]gateway.Guild, 0, len(groups))
	for _, info := range groups {
		id := info.JID.String()
		g.groups[id] = info
		guilds = append(guilds, gateway.Guild{ID: id, Name: info.Name})
	}
	slog.Debug("WhatsApp gateway enumerated guilds", "count", len(guilds))
	return guilds, nil
}

// ResolveChannel matches the guild's single channel (the group chat itself)
// against the requested name, case-insensitively. It returns (nil, nil) when
// the group's subject does not match.
func (g *Gateway) ResolveChannel(ctx context.Context, guildID, name string) (*gateway.Channel, error) {
	info, err := g.groupInfo(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(info.Name), strings.TrimSpace(name)) {
		return nil, nil
	}
	return &gateway.Channel{ID: guildID, GuildID: guildID, Name: info.Name}, nil
}

// Members lists the group participants. The bot's own account is flagged as
// automated so the orchestrator skips it.
func (g *Gateway) Members(ctx context.Context, guildID string) ([]gateway.Member, error) {
	info, err := g.groupInfo(ctx, guildID)
	if err != nil {
		return nil, err
	}

	own := g.client.OwnJID()
	members := make([]gateway.Member, 0, len(info.Participants))
	for _, p := range info.Participants {
		jid := p.JID.ToNonAD()
		members = append(members, gateway.Member{
			ID:   jid.String(),
			Name: jid.User,
			Bot:  jid.User == own.User,
		})
	}
	slog.Debug("WhatsApp gateway listed members", "guild", guildID, "count", len(members))
	return members, nil
}

// Send delivers a text message to the group chat.
func (g *Gateway) Send(ctx context.Context, channelID, text string) (gateway.MessageID, error) {
	jid, err := types.ParseJID(channelID)
	if err != nil {
		return "", fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	resp, err := g.client.GetClient().SendMessage(ctx, jid, textMessage(text))
	if err != nil {
		slog.Error("WhatsApp gateway send failed", "error", err, "channel", channelID)
		return "", fmt.Errorf("failed to send message to %s: %w", channelID, err)
	}
	slog.Debug("WhatsApp gateway message sent", "channel", channelID, "message_id", resp.ID)
	return gateway.MessageID(resp.ID), nil
}

// React attaches an emoji reaction to a previously sent message.
func (g *Gateway) React(ctx context.Context, channelID string, id gateway.MessageID, emoji string) error {
	jid, err := types.ParseJID(channelID)
	if err != nil {
		return fmt.Errorf("invalid channel id %q: %w", channelID, err)
	}
	wa := g.client.GetClient()
	reaction := wa.BuildReaction(jid, g.client.OwnJID(), types.MessageID(id), emoji)
	if _, err := wa.SendMessage(ctx, jid, reaction); err != nil {
		slog.Error("WhatsApp gateway reaction failed", "error", err, "channel", channelID, "message_id", id)
		return fmt.Errorf("failed to react to message %s: %w", id, err)
	}
	return nil
}

// AwaitMessage suspends until a qualifying text message arrives or the
// timeout elapses.
func (g *Gateway) AwaitMessage(ctx context.Context, filter gateway.MessageFilter, timeout time.Duration) (*gateway.IncomingMessage, error) {
	return g.waiters.AwaitMessage(ctx, filter, timeout)
}

// AwaitReaction suspends until a qualifying reaction arrives or the timeout
// elapses.
func (g *Gateway) AwaitReaction(ctx context.Context, filter gateway.ReactionFilter, timeout time.Duration) (*gateway.Reaction, error) {
	return g.waiters.AwaitReaction(ctx, filter, timeout)
}

// groupInfo returns cached group metadata, fetching it on a cache miss.
func (g *Gateway) groupInfo(ctx context.Context, guildID string) (*types.GroupInfo, error) {
	g.mu.Lock()
	info, ok := g.groups[guildID]
	g.mu.Unlock()
	if ok {
		return info, nil
	}

	jid, err := types.ParseJID(guildID)
	if err != nil {
		return nil, fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	info, err = g.client.GetClient().GetGroupInfo(ctx, jid)
	if err != nil {
		slog.Error("Failed to fetch group info", "error", err, "guild", guildID)
		return nil, fmt.Errorf("failed to fetch group info for %s: %w", guildID, err)
	}

	g.mu.Lock()
	g.groups[guildID] = info
	g.mu.Unlock()
	return info, nil
}

// handleEvent routes incoming whatsmeow events into the waiter registry.
func (g *Gateway) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		if v.Info.IsFromMe || v.Message == nil {
			return
		}
		if reaction := v.Message.GetReactionMessage(); reaction != nil {
			g.handleReaction(v, reaction)
			return
		}
		g.handleTextMessage(v)
	case *events.Connected:
		slog.Debug("WhatsApp gateway connected")
	case *events.Disconnected:
		slog.Warn("WhatsApp gateway disconnected")
	}
}

func (g *Gateway) handleTextMessage(evt *events.Message) {
	text := extractText(evt.Message)
	if strings.TrimSpace(text) == "" {
		// Skip non-text messages (images, audio, etc.)
		slog.Debug("WhatsApp gateway ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	g.waiters.DispatchMessage(gateway.IncomingMessage{
		ChannelID: evt.Info.Chat.String(),
		AuthorID:  evt.Info.Sender.ToNonAD().String(),
		Text:      text,
		At:        evt.Info.Timestamp,
	})
}

func (g *Gateway) handleReaction(evt *events.Message, reaction *waE2E.ReactionMessage) {
	emoji := reaction.GetText()
	if emoji == "" {
		// An empty reaction text is a reaction removal.
		return
	}

	g.waiters.DispatchReaction(gateway.Reaction{
		ChannelID: evt.Info.Chat.String(),
		MessageID: gateway.MessageID(reaction.GetKey().GetID()),
		AuthorID:  evt.Info.Sender.ToNonAD().String(),
		Emoji:     emoji,
		At:        evt.Info.Timestamp,
	})
}

// extractText pulls the text body out of the message variants members
// actually send.
func extractText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}
