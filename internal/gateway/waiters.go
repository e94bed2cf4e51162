package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Waiters routes gateway events to suspended Await calls. Transports feed
// their event streams into DispatchMessage/DispatchReaction; each Await
// registers a predicate and blocks until a matching event, the timeout, or
// context cancellation. An event is delivered to at most one waiter.
type Waiters struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]*messageWaiter
	reactions map[int64]*reactionWaiter
}

type messageWaiter struct {
	filter MessageFilter
	ch     chan IncomingMessage
}

type reactionWaiter struct {
	filter ReactionFilter
	ch     chan Reaction
}

// NewWaiters creates an empty waiter registry.
func NewWaiters() *Waiters {
	return &Waiters{
		messages:  make(map[int64]*messageWaiter),
		reactions: make(map[int64]*reactionWaiter),
	}
}

// AwaitMessage blocks until a dispatched message matches the filter, the
// timeout fires, or ctx is cancelled.
func (w *Waiters) AwaitMessage(ctx context.Context, filter MessageFilter, timeout time.Duration) (*IncomingMessage, error) {
	waiter := &messageWaiter{filter: filter, ch: make(chan IncomingMessage, 1)}

	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.messages[id] = waiter
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.messages, id)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	slog.Debug("Waiters awaiting message", "channel", filter.ChannelID, "author", filter.AuthorID, "timeout", timeout)
	select {
	case msg := <-waiter.ch:
		return &msg, nil
	case <-timer.C:
		slog.Debug("Waiters message wait timed out", "channel", filter.ChannelID, "author", filter.AuthorID)
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AwaitReaction blocks until a dispatched reaction matches the filter, the
// timeout fires, or ctx is cancelled.
func (w *Waiters) AwaitReaction(ctx context.Context, filter ReactionFilter, timeout time.Duration) (*Reaction, error) {
	waiter := &reactionWaiter{filter: filter, ch: make(chan Reaction, 1)}

	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.reactions[id] = waiter
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.reactions, id)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	slog.Debug("Waiters awaiting reaction", "message_id", filter.MessageID, "author", filter.AuthorID, "timeout", timeout)
	select {
	case r := <-waiter.ch:
		return &r, nil
	case <-timer.C:
		slog.Debug("Waiters reaction wait timed out", "message_id", filter.MessageID, "author", filter.AuthorID)
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DispatchMessage offers an incoming message to the first matching waiter.
// Unmatched messages are dropped; the core only cares about replies it is
// actively waiting on.
func (w *Waiters) DispatchMessage(m IncomingMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, waiter := range w.messages {
		if waiter.filter.Match(m) {
			waiter.ch <- m
			delete(w.messages, id)
			slog.Debug("Waiters delivered message", "channel", m.ChannelID, "author", m.AuthorID)
			return
		}
	}
}

// DispatchReaction offers a reaction to the first matching waiter.
func (w *Waiters) DispatchReaction(r Reaction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id, waiter := range w.reactions {
		if waiter.filter.Match(r) {
			waiter.ch <- r
			delete(w.reactions, id)
			slog.Debug("Waiters delivered reaction", "message_id", r.MessageID, "author", r.AuthorID, "emoji", r.Emoji)
			return
		}
	}
}
