package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
)

// AIServiceFactory builds an AI client for one submission. Credential
// overrides from the request win over server defaults.
type AIServiceFactory func(creds domain.AICredentials) ports.AIService

// TaskProxyUseCase implements the submit+poll contract: a submission
// is validated, recorded as pending and answered immediately; the
// pipeline runs detached from the request so client disconnects never
// abort it.
type TaskProxyUseCase struct {
	records   ports.TaskRecords
	extractor ports.ContentExtractor
	aiFactory AIServiceFactory

	// jobTimeout bounds a single detached pipeline run.
	jobTimeout time.Duration

	// observer, when set, receives every terminal task outcome.
	observer func(kind domain.RemoteTaskKind, status domain.RemoteTaskStatus)

	jobs sync.WaitGroup
}

// SetObserver registers a callback for terminal task outcomes. Must be
// called before the first submission.
func (uc *TaskProxyUseCase) SetObserver(fn func(kind domain.RemoteTaskKind, status domain.RemoteTaskStatus)) {
	uc.observer = fn
}

func NewTaskProxyUseCase(records ports.TaskRecords, extractor ports.ContentExtractor, aiFactory AIServiceFactory) *TaskProxyUseCase {
	return &TaskProxyUseCase{
		records:    records,
		extractor:  extractor,
		aiFactory:  aiFactory,
		jobTimeout: 2 * time.Minute,
	}
}

func (uc *TaskProxyUseCase) SubmitTagGeneration(ctx context.Context, req domain.TagGenerationRequest) (*domain.RemoteTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task := &domain.RemoteTask{
		ID:         uuid.NewString(),
		Kind:       domain.TaskGenerateTags,
		Status:     domain.RemotePending,
		URL:        req.URL,
		FilterTags: req.FilterTags,
		CreateTime: time.Now().UTC(),
		UpdateTime: time.Now().UTC(),
	}
	if err := uc.records.Create(ctx, task); err != nil {
		return nil, err
	}

	uc.jobs.Add(1)
	go uc.runTagGeneration(context.WithoutCancel(ctx), *task, req.Credentials)
	return task, nil
}

func (uc *TaskProxyUseCase) SubmitFolderSuggestion(ctx context.Context, req domain.FolderSuggestionRequest) (*domain.RemoteTask, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	task := &domain.RemoteTask{
		ID:         uuid.NewString(),
		Kind:       domain.TaskSuggestFolder,
		Status:     domain.RemotePending,
		URL:        req.URL,
		Folders:    req.Folders,
		CreateTime: time.Now().UTC(),
		UpdateTime: time.Now().UTC(),
	}
	if err := uc.records.Create(ctx, task); err != nil {
		return nil, err
	}

	uc.jobs.Add(1)
	go uc.runFolderSuggestion(context.WithoutCancel(ctx), *task, req.Credentials)
	return task, nil
}

func (uc *TaskProxyUseCase) GetTask(ctx context.Context, id string) (*domain.RemoteTask, error) {
	return uc.records.Get(ctx, id)
}

func (uc *TaskProxyUseCase) runTagGeneration(ctx context.Context, task domain.RemoteTask, creds domain.AICredentials) {
	defer uc.jobs.Done()
	ctx, cancel := context.WithTimeout(ctx, uc.jobTimeout)
	defer cancel()

	uc.markProcessing(ctx, &task)

	page, err := uc.extractor.Extract(ctx, task.URL)
	if err != nil {
		uc.markFailed(ctx, &task, fmt.Errorf("extract content: %w", err))
		return
	}

	ai := uc.aiFactory(creds)
	tags, err := ai.GenerateTags(ctx, pageTitle(page, task.URL), page.Content, task.FilterTags)
	if err != nil {
		uc.markFailed(ctx, &task, err)
		return
	}

	task.Status = domain.RemoteCompleted
	task.Tags = tags
	task.UpdateTime = time.Now().UTC()
	uc.saveTerminal(ctx, &task)
}

func (uc *TaskProxyUseCase) runFolderSuggestion(ctx context.Context, task domain.RemoteTask, creds domain.AICredentials) {
	defer uc.jobs.Done()
	ctx, cancel := context.WithTimeout(ctx, uc.jobTimeout)
	defer cancel()

	uc.markProcessing(ctx, &task)

	page, err := uc.extractor.Extract(ctx, task.URL)
	if err != nil {
		uc.markFailed(ctx, &task, fmt.Errorf("extract content: %w", err))
		return
	}

	candidates := make([]domain.Folder, 0, len(task.Folders))
	for _, name := range task.Folders {
		candidates = append(candidates, domain.Folder{ID: name, Title: name})
	}

	ai := uc.aiFactory(creds)
	rec, err := ai.GetFolderRecommendation(ctx, domain.Bookmark{
		URL:         task.URL,
		Title:       pageTitle(page, task.URL),
		Description: page.Content,
	}, candidates)
	if err != nil {
		uc.markFailed(ctx, &task, err)
		return
	}

	task.Status = domain.RemoteCompleted
	task.SuggestedFolder = rec.FolderName
	task.RawAIContent = rec.Reason
	task.UpdateTime = time.Now().UTC()
	uc.saveTerminal(ctx, &task)
}

func (uc *TaskProxyUseCase) markProcessing(ctx context.Context, task *domain.RemoteTask) {
	task.Status = domain.RemoteProcessing
	task.UpdateTime = time.Now().UTC()
	if err := uc.records.Update(ctx, task); err != nil {
		slog.Warn("task_record_mark_processing_failed", "task_id", task.ID, "error", err)
	}
}

func (uc *TaskProxyUseCase) markFailed(ctx context.Context, task *domain.RemoteTask, cause error) {
	task.Status = domain.RemoteFailed
	task.Error = cause.Error()
	var raw interface{ RawContent() string }
	if errors.As(cause, &raw) {
		task.RawAIContent = raw.RawContent()
	}
	task.UpdateTime = time.Now().UTC()
	uc.saveTerminal(ctx, task)
	slog.Warn("proxied_task_failed", "task_id", task.ID, "kind", task.Kind, "error", cause)
}

func (uc *TaskProxyUseCase) saveTerminal(ctx context.Context, task *domain.RemoteTask) {
	if err := uc.records.Update(ctx, task); err != nil {
		slog.Error("task_record_save_failed", "task_id", task.ID, "error", err)
	}
	if uc.observer != nil {
		uc.observer(task.Kind, task.Status)
	}
}

// Wait blocks until every detached job has finished.
func (uc *TaskProxyUseCase) Wait() {
	uc.jobs.Wait()
}

func pageTitle(page domain.PageContent, url string) string {
	switch {
	case page.MetaTitle != "":
		return page.MetaTitle
	case page.OGTitle != "":
		return page.OGTitle
	default:
		return strings.TrimSpace(url)
	}
}
