package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/markhub/classifier/internal/messenger"
)

// Cross-context envelopes travel on a sibling subject so capture
// batches and control traffic never compete for the same consumers.
func (q *Queue) messageSubject() string {
	return q.subject + ".messages"
}

func (q *Queue) PublishMessage(ctx context.Context, msg messenger.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(q.messageSubject(), payload); err != nil {
			return fmt.Errorf("nats publish envelope: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish_message", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeMessages delivers cross-context envelopes to handler until
// ctx ends. Unlike SubscribeCaptures it returns once the subscription
// is live, so a caller can run it next to the capture consumer.
func (q *Queue) SubscribeMessages(ctx context.Context, handler func(context.Context, messenger.Message) error) error {
	sub, err := q.conn.QueueSubscribe(q.messageSubject(), "agents", func(m *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var msg messenger.Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			slog.Error("envelope_unmarshal_failed", "error", err)
			return
		}
		if err := handler(ctx, msg); err != nil {
			slog.Error("envelope_handler_failed", "type", msg.Type, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe envelopes: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			slog.Warn("envelope_drain_failed", "error", err)
		}
	}()
	return nil
}

// Ping verifies the server round trip. The keepalive supervisor uses
// it as the heartbeat.
func (q *Queue) Ping(context.Context) error {
	if err := q.conn.FlushTimeout(2 * time.Second); err != nil {
		return fmt.Errorf("nats ping: %w", err)
	}
	return nil
}

// Healthy reports whether the connection can still recover. A closed
// connection has exhausted its reconnect budget.
func (q *Queue) Healthy() bool {
	return q.conn != nil && !q.conn.IsClosed()
}
