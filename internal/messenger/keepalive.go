package messenger

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrContextInvalidated signals that the extension runtime itself is
// gone, so reconnecting can never succeed.
var ErrContextInvalidated = errors.New("messenger: runtime context invalidated")

// Conn is a long-lived connection to the background worker.
type Conn interface {
	Heartbeat(ctx context.Context) error
	Close() error
}

// Dialer opens a Conn.
type Dialer func(ctx context.Context) (Conn, error)

// KeepaliveOptions tunes the supervisor. Zero values fall back to the
// production intervals.
type KeepaliveOptions struct {
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration

	// ContextValid reports whether the extension runtime still
	// exists. When it returns false the supervisor gives up for good.
	ContextValid func() bool
}

func (o KeepaliveOptions) normalize() KeepaliveOptions {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 25 * time.Second
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 2 * time.Second
	}
	if o.ContextValid == nil {
		o.ContextValid = func() bool { return true }
	}
	return o
}

// Keepalive keeps a connection to the background worker alive so the
// service worker is never idle long enough to be torn down.
type Keepalive struct {
	dial Dialer
	opts KeepaliveOptions
}

func NewKeepalive(dial Dialer, opts KeepaliveOptions) *Keepalive {
	return &Keepalive{dial: dial, opts: opts.normalize()}
}

// Run supervises the connection until ctx is cancelled or the runtime
// context is invalidated. Disconnects trigger a delayed reconnect.
func (k *Keepalive) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !k.opts.ContextValid() {
			slog.Warn("keepalive_context_invalidated")
			return ErrContextInvalidated
		}

		conn, err := k.dial(ctx)
		if err != nil {
			slog.Warn("keepalive_connect_failed", "error", err)
			if err := k.sleep(ctx); err != nil {
				return err
			}
			continue
		}
		slog.Info("keepalive_connected")

		err = k.beat(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("keepalive_disconnected", "error", err)
		if err := k.sleep(ctx); err != nil {
			return err
		}
	}
}

func (k *Keepalive) beat(ctx context.Context, conn Conn) error {
	ticker := time.NewTicker(k.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := conn.Heartbeat(ctx); err != nil {
				return err
			}
		}
	}
}

func (k *Keepalive) sleep(ctx context.Context) error {
	timer := time.NewTimer(k.opts.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
