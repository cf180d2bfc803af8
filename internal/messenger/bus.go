package messenger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNoReceiver is returned by a Sender when the other side of the
// boundary has no listener installed yet.
var ErrNoReceiver = errors.New("messenger: no receiver")

// Sender delivers a message across one context boundary.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

const pageContentRetryDelay = 500 * time.Millisecond

// Bus buffers messages destined for a receiver that signals readiness
// asynchronously. Until Ready is called every Send is queued; on Ready
// the queue is flushed with UI-state messages collapsed so the
// receiver never renders a stale bubble.
type Bus struct {
	sender Sender

	mu      sync.Mutex
	ready   bool
	pending []Message
}

func NewBus(sender Sender) *Bus {
	return &Bus{sender: sender}
}

// Send delivers msg immediately when the receiver is ready, otherwise
// buffers it for the next Ready call. Buffering always succeeds.
func (b *Bus) Send(ctx context.Context, msg Message) error {
	b.mu.Lock()
	if !b.ready {
		b.pending = append(b.pending, msg)
		b.mu.Unlock()
		slog.Debug("message_buffered", "type", msg.Type, "queued", len(b.pending))
		return nil
	}
	b.mu.Unlock()
	return b.sender.Send(ctx, msg)
}

// Ready marks the receiver as available and flushes the pending queue.
// Flush order: non-UI-state messages in arrival order, then the most
// recent loading message only when no terminal message is queued, then
// only the last terminal message. Earlier terminal messages are
// dropped because a newer result has superseded them.
func (b *Bus) Ready(ctx context.Context) {
	b.mu.Lock()
	b.ready = true
	queued := b.pending
	b.pending = nil
	b.mu.Unlock()

	if len(queued) == 0 {
		return
	}
	flush := orderFlush(queued)
	slog.Info("pending_messages_flush", "queued", len(queued), "sending", len(flush))
	for _, msg := range flush {
		if err := b.sender.Send(ctx, msg); err != nil {
			slog.Warn("pending_flush_send_failed", "type", msg.Type, "error", err)
		}
	}
}

// Reset returns the bus to the buffering state, dropping anything
// still queued. Used when the receiving page goes away.
func (b *Bus) Reset() {
	b.mu.Lock()
	b.ready = false
	b.pending = nil
	b.mu.Unlock()
}

// PendingCount reports how many messages are waiting for Ready.
func (b *Bus) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func orderFlush(queued []Message) []Message {
	var (
		other       []Message
		lastLoading *Message
		lastFinal   *Message
	)
	for i := range queued {
		msg := queued[i]
		switch {
		case msg.IsTerminal():
			lastFinal = &queued[i]
		case msg.IsLoading():
			lastLoading = &queued[i]
		default:
			other = append(other, msg)
		}
	}
	flush := other
	if lastFinal == nil && lastLoading != nil {
		flush = append(flush, *lastLoading)
	}
	if lastFinal != nil {
		flush = append(flush, *lastFinal)
	}
	return flush
}

// RequestPageContent asks the page side for its readable content. A
// missing receiver usually means the content script is still
// injecting, so that one failure is retried once after a short delay.
// Every other failure is returned as-is.
func RequestPageContent(ctx context.Context, sender Sender, msg Message) error {
	err := sender.Send(ctx, msg)
	if err == nil || !errors.Is(err, ErrNoReceiver) {
		return err
	}
	slog.Debug("page_content_request_retry", "delay", pageContentRetryDelay)
	timer := time.NewTimer(pageContentRetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return sender.Send(ctx, msg)
}
