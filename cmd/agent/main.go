package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/markhub/classifier/internal/bootstrap"
	"github.com/markhub/classifier/internal/config"
	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/infrastructure/queue/nats"
	"github.com/markhub/classifier/internal/messenger"
	"github.com/markhub/classifier/internal/observability/metrics"
)

const service = "agent"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, service, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	classifierMetrics := metrics.NewClassificationMetrics(service)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.AgentMetricsPort,
		Handler: classifierMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	// Toast-state notifications ride the envelope channel back to
	// whoever rendered the capture. They buffer until a consumer
	// announces itself with TOAST_READY.
	toastBus := messenger.NewBus(messenger.SenderFunc(func(sendCtx context.Context, msg messenger.Message) error {
		return app.Queue.PublishMessage(sendCtx, msg)
	}))
	app.ClassifyUC.SetObserver(func(task domain.ClassificationTask) {
		if err := toastBus.Send(ctx, outcomeToast(task)); err != nil {
			slog.Warn("toast_send_failed", "url", task.Bookmark.URL, "error", err)
		}
	})

	// Captures buffered while no consumer was reachable are replayed
	// onto the bus before live consumption starts.
	replayPending(ctx, app)

	if err := app.Queue.SubscribeMessages(ctx, func(msgCtx context.Context, msg messenger.Message) error {
		return handleEnvelope(msgCtx, app, toastBus, msg)
	}); err != nil {
		log.Fatalf("agent envelope subscribe error: %v", err)
	}

	keepalive := messenger.NewKeepalive(func(context.Context) (messenger.Conn, error) {
		if !app.Queue.Healthy() {
			return nil, errors.New("nats connection closed")
		}
		return queueConn{queue: app.Queue}, nil
	}, messenger.KeepaliveOptions{ContextValid: app.Queue.Healthy})
	go func() {
		if err := keepalive.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("keepalive_stopped", "error", err)
		}
	}()

	slog.Info("agent_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeCaptures(ctx, func(handlerCtx context.Context, batch []domain.Bookmark) error {
		classifierMetrics.StartBatch()
		now := time.Now()
		for _, b := range batch {
			classifierMetrics.ObserveCaptureLag(service, now.Sub(b.AddedAt))
			if err := toastBus.Send(handlerCtx, messenger.LoadingToast(b.URL, b.Title)); err != nil {
				slog.Warn("toast_send_failed", "url", b.URL, "error", err)
			}
		}
		app.ClassifyUC.AddBatch(batch)
		classifierMetrics.FinishBatch(service, len(batch), nil)
		return nil
	})
	if err != nil {
		log.Fatalf("agent subscribe error: %v", err)
	}

	// Let in-flight classifications finish before exiting.
	app.ClassifyUC.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}

// handleEnvelope routes one cross-context message. Classified-bookmark
// envelopes feed the reconciliation path; the rest drive the toast bus.
func handleEnvelope(ctx context.Context, app *bootstrap.App, toastBus *messenger.Bus, msg messenger.Message) error {
	switch msg.Type {
	case messenger.TypeToastReady:
		toastBus.Ready(ctx)
	case messenger.TypeUserActionCancel:
		toastBus.Reset()
	case messenger.TypeFolderClassifiedBookmark:
		var classified domain.ClassifiedBookmark
		if err := json.Unmarshal(msg.Payload, &classified); err != nil {
			return fmt.Errorf("decode classified bookmark: %w", err)
		}
		result := app.SyncUC.SyncNewBookmark(ctx, classified.Node())
		if !result.Success {
			slog.Warn("classified_bookmark_sync_failed", "url", classified.URL, "error", result.Error)
			return nil
		}
		slog.Info("classified_bookmark_synced", "url", classified.URL, "remote_id", result.RemoteID)
	case messenger.TypeRequestPendingBookmarks:
		replayPending(ctx, app)
	}
	return nil
}

func replayPending(ctx context.Context, app *bootstrap.App) {
	sent, remaining, err := app.Pending.Drain(ctx, func(p domain.PendingBookmark) error {
		return app.Queue.PublishCapture(ctx, domain.Bookmark{
			URL:         p.URL,
			Title:       p.Title,
			AddedAt:     p.CreatedAt,
			Tags:        p.Tags,
			Description: p.Description,
		})
	})
	if err != nil {
		slog.Warn("pending_drain_failed", "error", err)
		return
	}
	if sent > 0 || remaining > 0 {
		slog.Info("pending_drain_done", "sent", sent, "remaining", remaining)
	}
}

func outcomeToast(task domain.ClassificationTask) messenger.Message {
	if task.OverallStatus() == domain.StatusFailed {
		reason := task.TagError
		if reason == "" {
			reason = task.FolderError
		}
		return messenger.ErrorToast(task.Bookmark.URL, reason)
	}
	return messenger.SuggestionToast(task.Bookmark.URL, task.Bookmark.Title, task.GeneratedTags, task.SuggestedFolder)
}

// queueConn adapts the NATS connection to the keepalive contract.
type queueConn struct {
	queue *nats.Queue
}

func (c queueConn) Heartbeat(ctx context.Context) error { return c.queue.Ping(ctx) }

func (c queueConn) Close() error { return nil }
