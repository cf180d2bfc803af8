package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
)

type taskRecordsFake struct {
	mu      sync.Mutex
	records map[string]*domain.RemoteTask

	createErr error
}

func newTaskRecordsFake() *taskRecordsFake {
	return &taskRecordsFake{records: make(map[string]*domain.RemoteTask)}
}

func (f *taskRecordsFake) Create(_ context.Context, task *domain.RemoteTask) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *task
	f.records[task.ID] = &copied
	return nil
}

func (f *taskRecordsFake) Get(_ context.Context, id string) (*domain.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.records[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrTaskNotFound, "get task record", errors.New(id))
	}
	copied := *task
	return &copied, nil
}

func (f *taskRecordsFake) Update(_ context.Context, task *domain.RemoteTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.records[task.ID]
	if !ok {
		return domain.WrapError(domain.ErrTaskNotFound, "update task record", errors.New(task.ID))
	}
	if current.Status.Terminal() {
		return nil
	}
	copied := *task
	f.records[task.ID] = &copied
	return nil
}

func newProxyForTest(records ports.TaskRecords, extractor ports.ContentExtractor, ai *aiFake) *TaskProxyUseCase {
	return NewTaskProxyUseCase(records, extractor, func(domain.AICredentials) ports.AIService {
		return ai
	})
}

func TestSubmitTagGenerationRejectsMissingURL(t *testing.T) {
	proxy := newProxyForTest(newTaskRecordsFake(), &pageExtractorFake{}, &aiFake{})

	_, err := proxy.SubmitTagGeneration(context.Background(), domain.TagGenerationRequest{URL: "  "})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitTagGenerationReturnsPendingThenCompletes(t *testing.T) {
	records := newTaskRecordsFake()
	ai := &aiFake{tags: []string{"golang", "testing"}}
	proxy := newProxyForTest(records, &pageExtractorFake{page: domain.PageContent{MetaTitle: "Go", Content: "text"}}, ai)

	task, err := proxy.SubmitTagGeneration(context.Background(), domain.TagGenerationRequest{
		URL:        "https://go.dev",
		FilterTags: []string{"golang", "testing", "web"},
	})
	if err != nil {
		t.Fatalf("SubmitTagGeneration() error = %v", err)
	}
	if task.Status != domain.RemotePending || task.ID == "" {
		t.Fatalf("expected pending task with id, got %+v", task)
	}

	proxy.Wait()

	final, err := proxy.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if final.Status != domain.RemoteCompleted {
		t.Fatalf("expected completed, got %s (error: %s)", final.Status, final.Error)
	}
	if len(final.Tags) != 2 {
		t.Fatalf("unexpected tags: %v", final.Tags)
	}
}

func TestSubmitFolderSuggestionCompletes(t *testing.T) {
	records := newTaskRecordsFake()
	ai := &aiFake{rec: &domain.FolderRecommendation{FolderID: "Tech", FolderName: "Tech", Confidence: 0.9, Reason: "dev site"}}
	proxy := newProxyForTest(records, &pageExtractorFake{page: domain.PageContent{Content: "text"}}, ai)

	task, err := proxy.SubmitFolderSuggestion(context.Background(), domain.FolderSuggestionRequest{
		URL:     "https://go.dev",
		Folders: []string{"Tech", "News"},
	})
	if err != nil {
		t.Fatalf("SubmitFolderSuggestion() error = %v", err)
	}

	proxy.Wait()

	final, err := proxy.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if final.Status != domain.RemoteCompleted || final.SuggestedFolder != "Tech" {
		t.Fatalf("unexpected final task: %+v", final)
	}
	if final.RawAIContent != "dev site" {
		t.Fatalf("expected raw reasoning preserved, got %q", final.RawAIContent)
	}
}

func TestSubmitFolderSuggestionRequiresFolders(t *testing.T) {
	proxy := newProxyForTest(newTaskRecordsFake(), &pageExtractorFake{}, &aiFake{})

	_, err := proxy.SubmitFolderSuggestion(context.Background(), domain.FolderSuggestionRequest{URL: "https://go.dev"})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestExtractionFailureMarksTaskFailed(t *testing.T) {
	records := newTaskRecordsFake()
	proxy := newProxyForTest(records, &pageExtractorFake{err: errors.New("all methods failed")}, &aiFake{})

	task, err := proxy.SubmitTagGeneration(context.Background(), domain.TagGenerationRequest{URL: "https://unreachable.example"})
	if err != nil {
		t.Fatalf("SubmitTagGeneration() error = %v", err)
	}

	proxy.Wait()

	final, _ := proxy.GetTask(context.Background(), task.ID)
	if final.Status != domain.RemoteFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Error == "" {
		t.Fatalf("expected failure reason on task")
	}
}

type undecodableAnswerErr struct {
	raw string
}

func (e *undecodableAnswerErr) Error() string      { return "parse tag suggestion: invalid JSON" }
func (e *undecodableAnswerErr) RawContent() string { return e.raw }

func TestFailedTaskKeepsRawModelOutput(t *testing.T) {
	records := newTaskRecordsFake()
	ai := &aiFake{tagsErr: &undecodableAnswerErr{raw: "sure, here are some tags"}}
	proxy := newProxyForTest(records, &pageExtractorFake{page: domain.PageContent{Content: "text"}}, ai)

	task, err := proxy.SubmitTagGeneration(context.Background(), domain.TagGenerationRequest{URL: "https://go.dev"})
	if err != nil {
		t.Fatalf("SubmitTagGeneration() error = %v", err)
	}

	proxy.Wait()

	final, err := proxy.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if final.Status != domain.RemoteFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.RawAIContent != "sure, here are some tags" {
		t.Fatalf("expected raw model output on the record, got %q", final.RawAIContent)
	}
	if final.Error == "" {
		t.Fatalf("expected error message on the record")
	}
}

func TestTerminalRecordIsNeverReverted(t *testing.T) {
	records := newTaskRecordsFake()
	task := &domain.RemoteTask{ID: "t1", Status: domain.RemotePending}
	if err := records.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}

	task.Status = domain.RemoteCompleted
	task.Tags = []string{"golang"}
	if err := records.Update(context.Background(), task); err != nil {
		t.Fatalf("update to completed: %v", err)
	}

	task.Status = domain.RemoteProcessing
	if err := records.Update(context.Background(), task); err != nil {
		t.Fatalf("late update: %v", err)
	}

	final, _ := records.Get(context.Background(), "t1")
	if final.Status != domain.RemoteCompleted {
		t.Fatalf("terminal status must stick, got %s", final.Status)
	}
}

func TestGetTaskUnknownIDIsNotFound(t *testing.T) {
	proxy := newProxyForTest(newTaskRecordsFake(), &pageExtractorFake{}, &aiFake{})

	_, err := proxy.GetTask(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrTaskNotFound) {
		t.Fatalf("expected not-found kind, got %v", err)
	}
}
