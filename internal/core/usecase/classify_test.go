package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/markhub/classifier/internal/core/domain"
)

type aiFake struct {
	mu sync.Mutex

	tags    []string
	tagsErr error

	rec    *domain.FolderRecommendation
	recErr error

	tagCalls    int
	folderCalls int
}

func (f *aiFake) GenerateTags(context.Context, string, string, []string) ([]string, error) {
	f.mu.Lock()
	f.tagCalls++
	f.mu.Unlock()
	if f.tagsErr != nil {
		return nil, f.tagsErr
	}
	return f.tags, nil
}

func (f *aiFake) GetFolderRecommendation(context.Context, domain.Bookmark, []domain.Folder) (*domain.FolderRecommendation, error) {
	f.mu.Lock()
	f.folderCalls++
	f.mu.Unlock()
	if f.recErr != nil {
		return nil, f.recErr
	}
	return f.rec, nil
}

type pageExtractorFake struct {
	page domain.PageContent
	err  error
}

func (f *pageExtractorFake) Extract(context.Context, string) (domain.PageContent, error) {
	if f.err != nil {
		return domain.PageContent{}, f.err
	}
	return f.page, nil
}

type bookmarkStoreFake struct {
	mu sync.Mutex

	authenticated bool
	bookmarks     []domain.RemoteBookmark
	folders       []domain.Folder

	listErr    error
	foldersErr error
	createErr  error
	updateErr  error
	deleteErr  error
	ensureErr  error
	tagErr     error

	created     []domain.RemoteBookmark
	updated     []domain.RemoteBookmark
	deleted     []string
	ensured     [][]string
	tagTriggers []string
	nextID      int
}

func (f *bookmarkStoreFake) IsAuthenticated() bool { return f.authenticated }

func (f *bookmarkStoreFake) ListBookmarks(context.Context) ([]domain.RemoteBookmark, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RemoteBookmark(nil), f.bookmarks...), nil
}

func (f *bookmarkStoreFake) FindByURL(_ context.Context, url string) (*domain.RemoteBookmark, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.bookmarks {
		if f.bookmarks[i].URL == url {
			b := f.bookmarks[i]
			return &b, nil
		}
	}
	return nil, nil
}

func (f *bookmarkStoreFake) CreateBookmark(_ context.Context, b domain.RemoteBookmark) (*domain.RemoteBookmark, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = "bm_" + string(rune('0'+f.nextID))
	f.bookmarks = append(f.bookmarks, b)
	f.created = append(f.created, b)
	return &b, nil
}

func (f *bookmarkStoreFake) UpdateBookmark(_ context.Context, id string, b domain.RemoteBookmark) (*domain.RemoteBookmark, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = id
	f.updated = append(f.updated, b)
	return &b, nil
}

func (f *bookmarkStoreFake) DeleteBookmark(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *bookmarkStoreFake) EnsureFolderPath(_ context.Context, path []string, cache map[string]string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	if len(path) == 0 {
		return "", nil
	}
	f.mu.Lock()
	f.ensured = append(f.ensured, append([]string(nil), path...))
	f.mu.Unlock()
	id := "folder_" + path[len(path)-1]
	if cache != nil {
		cache[path[len(path)-1]] = id
	}
	return id, nil
}

func (f *bookmarkStoreFake) ListFolders(context.Context) ([]domain.Folder, error) {
	if f.foldersErr != nil {
		return nil, f.foldersErr
	}
	return f.folders, nil
}

func (f *bookmarkStoreFake) TriggerAITagSuggestion(_ context.Context, bookmarkID string) error {
	f.mu.Lock()
	f.tagTriggers = append(f.tagTriggers, bookmarkID)
	f.mu.Unlock()
	return f.tagErr
}

func newQueueForTest(ai *aiFake, store *bookmarkStoreFake) *ClassificationQueueUseCase {
	return NewClassificationQueueUseCase(
		context.Background(),
		ai,
		&pageExtractorFake{page: domain.PageContent{Content: "page text"}},
		store,
		2,
	)
}

func capture(url string) domain.Bookmark {
	return domain.Bookmark{
		URL:     url,
		Title:   "Title for " + url,
		AddedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestAddBatchCreatesOneTaskPerCapture(t *testing.T) {
	ai := &aiFake{
		tags: []string{"golang"},
		rec:  &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech", Confidence: 0.9},
	}
	store := &bookmarkStoreFake{
		folders:   []domain.Folder{{ID: "f1", Title: "Tech"}},
		bookmarks: []domain.RemoteBookmark{{ID: "bm_0", URL: "https://a.dev", Tags: []string{"golang"}}},
	}
	queue := newQueueForTest(ai, store)

	queue.AddBatch([]domain.Bookmark{capture("https://a.dev"), capture("https://b.dev"), capture("https://c.dev")})
	if got := len(queue.Tasks()); got != 3 {
		t.Fatalf("expected 3 tasks right after enqueue, got %d", got)
	}
	queue.Wait()

	tasks := queue.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.OverallStatus() != domain.StatusCompleted {
			t.Fatalf("task %s not completed: tag=%s folder=%s", task.Bookmark.URL, task.TagStatus, task.FolderStatus)
		}
		if task.SuggestedFolder != "Tech" {
			t.Fatalf("unexpected folder suggestion: %q", task.SuggestedFolder)
		}
	}
}

type gatedExtractorFake struct {
	release chan struct{}
}

func (f *gatedExtractorFake) Extract(context.Context, string) (domain.PageContent, error) {
	<-f.release
	return domain.PageContent{Content: "page text"}, nil
}

func TestAddBatchDoesNotBlockOnClassification(t *testing.T) {
	ai := &aiFake{tags: []string{"golang"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	extractor := &gatedExtractorFake{release: make(chan struct{})}
	queue := NewClassificationQueueUseCase(context.Background(), ai, extractor, store, 2)

	queue.AddBatch([]domain.Bookmark{capture("https://a.dev"), capture("https://b.dev"), capture("https://c.dev")})

	// Every worker is still parked in extraction, yet the tasks are
	// already visible.
	tasks := queue.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks before any worker finished, got %d", len(tasks))
	}
	for _, task := range tasks {
		if task.Terminal() {
			t.Fatalf("task %s finished before the extractor was released", task.Bookmark.URL)
		}
	}

	close(extractor.release)
	queue.Wait()

	for _, task := range queue.Tasks() {
		if task.OverallStatus() != domain.StatusCompleted {
			t.Fatalf("task %s not completed: tag=%s folder=%s", task.Bookmark.URL, task.TagStatus, task.FolderStatus)
		}
	}
}

func TestDuplicateCaptureRefreshesInsteadOfDuplicating(t *testing.T) {
	ai := &aiFake{tags: []string{"golang"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	queue := newQueueForTest(ai, store)

	first := capture("https://a.dev")
	duplicate := first
	duplicate.Title = "Refreshed title"

	queue.Add(first)
	queue.Add(duplicate)
	queue.Wait()

	tasks := queue.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected duplicate capture to coalesce, got %d tasks", len(tasks))
	}
}

func TestTagFailureStillRunsFolderSuggestion(t *testing.T) {
	ai := &aiFake{
		tagsErr: errors.New("model overloaded"),
		rec:     &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech", Confidence: 0.8},
	}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	queue := newQueueForTest(ai, store)

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	tasks := queue.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	task := tasks[0]
	if task.TagStatus != domain.TagsFailed {
		t.Fatalf("expected tags_failed, got %s", task.TagStatus)
	}
	if task.TagError == "" {
		t.Fatalf("expected tag error recorded")
	}
	if task.FolderStatus != domain.FolderSuggested || task.SuggestedFolder != "Tech" {
		t.Fatalf("expected folder suggestion despite tag failure, got %s/%q", task.FolderStatus, task.SuggestedFolder)
	}
	if task.OverallStatus() != domain.StatusPartiallyFailed {
		t.Fatalf("expected partially_failed, got %s", task.OverallStatus())
	}
}

func TestBothSidesFailingYieldsFailed(t *testing.T) {
	ai := &aiFake{tagsErr: errors.New("down"), recErr: errors.New("down")}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	queue := newQueueForTest(ai, store)

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	task := queue.Tasks()[0]
	if task.OverallStatus() != domain.StatusFailed {
		t.Fatalf("expected failed, got %s", task.OverallStatus())
	}

	_, completed, failed := queue.Counts()
	if completed != 0 || failed != 1 {
		t.Fatalf("Counts() = (_, %d, %d), want (_, 0, 1)", completed, failed)
	}
}

func TestClearCompletedKeepsFailedTasks(t *testing.T) {
	ai := &aiFake{tags: []string{"golang"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	queue := newQueueForTest(ai, store)
	queue.Add(capture("https://ok.dev"))
	queue.Wait()

	ai.tagsErr = errors.New("down")
	ai.recErr = errors.New("down")
	queue.Add(capture("https://bad.dev"))
	queue.Wait()

	queue.ClearCompleted()

	tasks := queue.Tasks()
	if len(tasks) != 1 || tasks[0].Bookmark.URL != "https://bad.dev" {
		t.Fatalf("expected only the failed task to survive, got %+v", tasks)
	}

	queue.ClearAll()
	if len(queue.Tasks()) != 0 {
		t.Fatalf("expected empty queue after ClearAll")
	}
	if queue.HasActive() {
		t.Fatalf("expected no active tasks after ClearAll")
	}
}

func TestCompletedTaskPropagatesTagsAndFolderToRemoteStore(t *testing.T) {
	ai := &aiFake{tags: []string{"golang", "web"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{
		folders:   []domain.Folder{{ID: "f1", Title: "Tech"}},
		bookmarks: []domain.RemoteBookmark{{ID: "bm_9", URL: "https://a.dev"}},
	}
	queue := newQueueForTest(ai, store)

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updated) != 1 {
		t.Fatalf("expected one remote update, got %d", len(store.updated))
	}
	if got := store.updated[0].Tags; len(got) != 2 || got[0] != "golang" {
		t.Fatalf("unexpected propagated tags: %v", got)
	}
	if got := store.updated[0].FolderID; got != "f1" {
		t.Fatalf("expected suggested folder id propagated, got %q", got)
	}
}

func TestFolderSuggestionPropagatesWhenTagsFail(t *testing.T) {
	ai := &aiFake{
		tagsErr: errors.New("model overloaded"),
		rec:     &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"},
	}
	store := &bookmarkStoreFake{
		folders:   []domain.Folder{{ID: "f1", Title: "Tech"}},
		bookmarks: []domain.RemoteBookmark{{ID: "bm_9", URL: "https://a.dev"}},
	}
	queue := newQueueForTest(ai, store)

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updated) != 1 {
		t.Fatalf("expected one remote update, got %d", len(store.updated))
	}
	if got := store.updated[0].FolderID; got != "f1" {
		t.Fatalf("expected suggested folder id propagated, got %q", got)
	}
	if len(store.updated[0].Tags) != 0 {
		t.Fatalf("expected no tags pushed for a failed tag side, got %v", store.updated[0].Tags)
	}
}

func TestObserverReceivesFinishedTaskSnapshot(t *testing.T) {
	ai := &aiFake{tags: []string{"golang"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{folders: []domain.Folder{{ID: "f1", Title: "Tech"}}}
	queue := newQueueForTest(ai, store)

	var mu sync.Mutex
	var seen []domain.ClassificationTask
	queue.SetObserver(func(task domain.ClassificationTask) {
		mu.Lock()
		seen = append(seen, task)
		mu.Unlock()
	})

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 {
		t.Fatalf("expected one observed task, got %d", len(seen))
	}
	if seen[0].OverallStatus() != domain.StatusCompleted {
		t.Fatalf("expected a terminal snapshot, got %s", seen[0].OverallStatus())
	}
	if len(seen[0].GeneratedTags) != 1 || seen[0].SuggestedFolder != "Tech" {
		t.Fatalf("unexpected snapshot: %+v", seen[0])
	}
}

func TestPropagateFailureDoesNotChangeTaskStatus(t *testing.T) {
	ai := &aiFake{tags: []string{"golang"}, rec: &domain.FolderRecommendation{FolderID: "f1", FolderName: "Tech"}}
	store := &bookmarkStoreFake{
		folders:   []domain.Folder{{ID: "f1", Title: "Tech"}},
		bookmarks: []domain.RemoteBookmark{{ID: "bm_9", URL: "https://a.dev"}},
		updateErr: errors.New("app unreachable"),
	}
	queue := newQueueForTest(ai, store)

	queue.Add(capture("https://a.dev"))
	queue.Wait()

	task := queue.Tasks()[0]
	if task.OverallStatus() != domain.StatusCompleted {
		t.Fatalf("expected completed despite propagate failure, got %s", task.OverallStatus())
	}
}
