package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/markhub/classifier/internal/adapters/http"
	"github.com/markhub/classifier/internal/bootstrap"
	"github.com/markhub/classifier/internal/config"
	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/observability/metrics"
)

const service = "api"

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

	httpMetrics := metrics.NewHTTPServerMetrics(service)
	app.TaskUC.SetObserver(func(kind domain.RemoteTaskKind, status domain.RemoteTaskStatus) {
		httpMetrics.RecordTaskOutcome(service, string(kind), string(status))
	})

	router := httpadapter.NewRouter(app.TaskUC, httpMetrics, service, cfg.APIAuthToken).Handler()
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
	// Detached classification jobs outlive their requests; wait for
	// them so terminal states reach the task records.
	app.TaskUC.Wait()
}
