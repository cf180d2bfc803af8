package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markhub/classifier/internal/config"
	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
	"github.com/markhub/classifier/internal/core/usecase"
	"github.com/markhub/classifier/internal/infrastructure/extractor/webpage"
	"github.com/markhub/classifier/internal/infrastructure/llm/openai"
	"github.com/markhub/classifier/internal/infrastructure/markhub"
	pendingsqlite "github.com/markhub/classifier/internal/infrastructure/pending/sqlite"
	"github.com/markhub/classifier/internal/infrastructure/queue/nats"
	"github.com/markhub/classifier/internal/infrastructure/resilience"
	taskredis "github.com/markhub/classifier/internal/infrastructure/taskrecords/redis"
	"github.com/markhub/classifier/internal/observability/logging"
)

type App struct {
	Config   config.Config
	Settings *config.Manager

	// Queue is concrete rather than the CaptureBus port: the agent
	// also rides its envelope channel and health checks.
	Queue   *nats.Queue
	Store   ports.BookmarkStore
	Pending ports.PendingStore

	ClassifyUC *usecase.ClassificationQueueUseCase
	SyncUC     *usecase.SyncUseCase
	TaskUC     *usecase.TaskProxyUseCase

	closeFn func()
}

func New(ctx context.Context, service string, cfg config.Config) (*App, error) {
	slog.SetDefault(logging.NewJSONLogger(service, cfg.LogLevel))

	settings := config.NewManager(cfg.SettingsPath)

	rdb, err := taskredis.NewClient(ctx, taskredis.ClientConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	records := taskredis.New(rdb, 0)

	pending, err := pendingsqlite.Open(cfg.PendingStorePath)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("open pending store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = pending.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("init capture bus: %w", err)
	}

	extractor := webpage.New(cfg.ReaderAPIURL)

	aiOpts := openai.Options{
		FallbackConfidence:  cfg.FallbackConfidence,
		FirstPickConfidence: cfg.FirstPickConfidence,
	}
	defaultAI := openai.NewResilient(
		openai.New(cfg.AIAPIBaseURL, cfg.AIAPIKey, cfg.AIModelName, aiOpts),
		executor,
	)
	aiFactory := func(creds domain.AICredentials) ports.AIService {
		if creds.APIKey == "" && creds.APIBaseURL == "" && creds.ModelName == "" {
			return defaultAI
		}
		baseURL := cfg.AIAPIBaseURL
		if creds.APIBaseURL != "" {
			baseURL = creds.APIBaseURL
		}
		apiKey := cfg.AIAPIKey
		if creds.APIKey != "" {
			apiKey = creds.APIKey
		}
		model := cfg.AIModelName
		if creds.ModelName != "" {
			model = creds.ModelName
		}
		return openai.NewResilient(openai.New(baseURL, apiKey, model, aiOpts), executor)
	}

	store := markhub.New(cfg.MarkHubAPIURL, markhubToken(cfg, settings))

	classifyUC := usecase.NewClassificationQueueUseCase(ctx, defaultAI, extractor, store, cfg.ClassificationConcurrency)
	syncUC := usecase.NewSyncUseCase(store, settingsSyncAdapter{settings})
	taskUC := usecase.NewTaskProxyUseCase(records, extractor, aiFactory)

	return &App{
		Config:   cfg,
		Settings: settings,

		Queue:   queue,
		Store:   store,
		Pending: pending,

		ClassifyUC: classifyUC,
		SyncUC:     syncUC,
		TaskUC:     taskUC,

		closeFn: func() {
			queue.Close()
			_ = pending.Close()
			_ = rdb.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// markhubToken prefers the environment token and falls back to the
// one saved in the settings file.
func markhubToken(cfg config.Config, settings *config.Manager) string {
	if cfg.MarkHubAuthToken != "" {
		return cfg.MarkHubAuthToken
	}
	return settings.GetSync().AuthToken
}

type settingsSyncAdapter struct {
	manager *config.Manager
}

func (a settingsSyncAdapter) SyncEnabled() bool {
	return a.manager.GetSync().SyncEnabled
}
