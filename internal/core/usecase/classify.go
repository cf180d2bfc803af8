package usecase

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
)

// ClassificationQueueUseCase holds classification tasks in memory and
// runs the AI pipeline for each with bounded concurrency. Enqueueing
// returns immediately; results land on the task as they arrive.
type ClassificationQueueUseCase struct {
	ai        ports.AIService
	extractor ports.ContentExtractor
	store     ports.BookmarkStore

	runCtx context.Context
	sem    *semaphore.Weighted
	wg     sync.WaitGroup

	observer func(domain.ClassificationTask)

	mu    sync.Mutex
	tasks map[string]*domain.ClassificationTask
}

func NewClassificationQueueUseCase(
	runCtx context.Context,
	ai ports.AIService,
	extractor ports.ContentExtractor,
	store ports.BookmarkStore,
	concurrency int,
) *ClassificationQueueUseCase {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &ClassificationQueueUseCase{
		ai:        ai,
		extractor: extractor,
		store:     store,
		runCtx:    runCtx,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		tasks:     make(map[string]*domain.ClassificationTask),
	}
}

// SetObserver registers a callback invoked with the task snapshot once
// both classification sides have finished. Set it before enqueueing.
func (uc *ClassificationQueueUseCase) SetObserver(fn func(domain.ClassificationTask)) {
	uc.observer = fn
}

// Add enqueues one capture. A capture with the same URL and capture
// time as an existing task refreshes that task's bookmark snapshot
// instead of spawning a duplicate.
func (uc *ClassificationQueueUseCase) Add(bookmark domain.Bookmark) {
	uc.AddBatch([]domain.Bookmark{bookmark})
}

func (uc *ClassificationQueueUseCase) AddBatch(bookmarks []domain.Bookmark) {
	started := make([]*domain.ClassificationTask, 0, len(bookmarks))

	uc.mu.Lock()
	for _, bookmark := range bookmarks {
		key := bookmark.DedupKey()
		if existing, ok := uc.tasks[key]; ok {
			existing.Bookmark = bookmark
			continue
		}
		task := &domain.ClassificationTask{
			ID:           uuid.NewString(),
			Bookmark:     bookmark,
			TagStatus:    domain.TagPending,
			FolderStatus: domain.FolderPending,
			CreatedAt:    bookmark.AddedAt,
		}
		uc.tasks[key] = task
		started = append(started, task)
	}
	uc.mu.Unlock()

	for _, task := range started {
		uc.wg.Add(1)
		go uc.run(task.Bookmark.DedupKey())
	}
}

func (uc *ClassificationQueueUseCase) run(key string) {
	defer uc.wg.Done()

	if err := uc.sem.Acquire(uc.runCtx, 1); err != nil {
		return
	}
	defer uc.sem.Release(1)

	bookmark, ok := uc.taskBookmark(key)
	if !ok {
		// Cleared while waiting for a worker slot.
		return
	}

	content := uc.extractContent(bookmark)

	// The two sides advance independently: a tag failure never blocks
	// the folder suggestion and vice versa.
	var sides sync.WaitGroup
	sides.Add(2)
	go func() {
		defer sides.Done()
		uc.generateTags(key, bookmark, content)
	}()
	go func() {
		defer sides.Done()
		uc.suggestFolder(key, bookmark, content)
	}()
	sides.Wait()

	uc.propagate(key)

	if uc.observer != nil {
		uc.mu.Lock()
		task, ok := uc.tasks[key]
		var snapshot domain.ClassificationTask
		if ok {
			snapshot = *task
		}
		uc.mu.Unlock()
		if ok {
			uc.observer(snapshot)
		}
	}
}

func (uc *ClassificationQueueUseCase) extractContent(bookmark domain.Bookmark) string {
	page, err := uc.extractor.Extract(uc.runCtx, bookmark.URL)
	if err != nil {
		slog.Warn("classification_extract_failed", "url", bookmark.URL, "error", err)
		return bookmark.Description
	}
	if page.Content == "" {
		return bookmark.Description
	}
	return page.Content
}

func (uc *ClassificationQueueUseCase) generateTags(key string, bookmark domain.Bookmark, content string) {
	if !uc.setTagStatus(key, domain.TagGenerating, nil, "") {
		return
	}

	existing, err := uc.existingTags()
	if err != nil {
		uc.setTagStatus(key, domain.TagsFailed, nil, err.Error())
		return
	}

	tags, err := uc.ai.GenerateTags(uc.runCtx, bookmark.Title, content, existing)
	if err != nil {
		slog.Warn("tag_generation_failed", "url", bookmark.URL, "error", err)
		uc.setTagStatus(key, domain.TagsFailed, nil, err.Error())
		return
	}
	uc.setTagStatus(key, domain.TagsGenerated, tags, "")
}

func (uc *ClassificationQueueUseCase) suggestFolder(key string, bookmark domain.Bookmark, content string) {
	if !uc.setFolderStatus(key, domain.FolderSuggesting, "", "", "") {
		return
	}

	folders, err := uc.store.ListFolders(uc.runCtx)
	if err != nil {
		uc.setFolderStatus(key, domain.FolderFailed, "", "", err.Error())
		return
	}

	enriched := bookmark
	if enriched.Description == "" {
		enriched.Description = content
	}

	rec, err := uc.ai.GetFolderRecommendation(uc.runCtx, enriched, folders)
	if err != nil {
		slog.Warn("folder_suggestion_failed", "url", bookmark.URL, "error", err)
		uc.setFolderStatus(key, domain.FolderFailed, "", "", err.Error())
		return
	}
	if rec == nil {
		uc.setFolderStatus(key, domain.FolderFailed, "", "", "no folders available")
		return
	}
	uc.setFolderStatus(key, domain.FolderSuggested, rec.FolderName, rec.FolderID, "")
}

// propagate pushes a finished task's results to the remote store. Each
// side that succeeded is pushed; a side that failed is left out. A
// push failure is a reconciliation problem, not a classification one:
// the task keeps its terminal status and the error is only logged.
func (uc *ClassificationQueueUseCase) propagate(key string) {
	uc.mu.Lock()
	task, ok := uc.tasks[key]
	if !ok {
		uc.mu.Unlock()
		return
	}
	tagsDone := task.TagStatus == domain.TagsGenerated
	folderDone := task.FolderStatus == domain.FolderSuggested && task.SuggestedFolderID != ""
	bookmark := task.Bookmark
	tags := append([]string(nil), task.GeneratedTags...)
	folderID := task.SuggestedFolderID
	uc.mu.Unlock()

	if !tagsDone && !folderDone {
		return
	}

	remote, err := uc.store.FindByURL(uc.runCtx, bookmark.URL)
	if err == nil && remote != nil {
		if tagsDone {
			remote.Tags = tags
		}
		if folderDone {
			remote.FolderID = folderID
		}
		_, err = uc.store.UpdateBookmark(uc.runCtx, remote.ID, *remote)
	}
	if err != nil {
		wrapped := domain.WrapError(domain.ErrReconciliation, "propagate classification", err)
		slog.Error("classification_propagate_failed", "url", bookmark.URL, "error", wrapped)
	}
}

func (uc *ClassificationQueueUseCase) existingTags() ([]string, error) {
	bookmarks, err := uc.store.ListBookmarks(uc.runCtx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var tags []string
	for _, b := range bookmarks {
		for _, tag := range b.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (uc *ClassificationQueueUseCase) taskBookmark(key string) (domain.Bookmark, bool) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	task, ok := uc.tasks[key]
	if !ok {
		return domain.Bookmark{}, false
	}
	return task.Bookmark, true
}

// setTagStatus mutates the task if it still exists; results for tasks
// cleared mid-flight are discarded.
func (uc *ClassificationQueueUseCase) setTagStatus(key string, status domain.TagStatus, tags []string, errMsg string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	task, ok := uc.tasks[key]
	if !ok {
		return false
	}
	task.TagStatus = status
	if tags != nil {
		task.GeneratedTags = tags
	}
	task.TagError = errMsg
	return true
}

func (uc *ClassificationQueueUseCase) setFolderStatus(key string, status domain.FolderStatus, folder, folderID, errMsg string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	task, ok := uc.tasks[key]
	if !ok {
		return false
	}
	task.FolderStatus = status
	if folder != "" {
		task.SuggestedFolder = folder
		task.SuggestedFolderID = folderID
	}
	task.FolderError = errMsg
	return true
}

func (uc *ClassificationQueueUseCase) Tasks() []domain.ClassificationTask {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	out := make([]domain.ClassificationTask, 0, len(uc.tasks))
	for _, task := range uc.tasks {
		out = append(out, *task)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (uc *ClassificationQueueUseCase) HasActive() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, task := range uc.tasks {
		if !task.Terminal() {
			return true
		}
	}
	return false
}

func (uc *ClassificationQueueUseCase) Counts() (processing, completed, failed int) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, task := range uc.tasks {
		switch task.OverallStatus() {
		case domain.StatusCompleted:
			completed++
		case domain.StatusFailed, domain.StatusPartiallyFailed:
			failed++
		default:
			processing++
		}
	}
	return processing, completed, failed
}

func (uc *ClassificationQueueUseCase) ClearCompleted() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for key, task := range uc.tasks {
		if task.OverallStatus() == domain.StatusCompleted {
			delete(uc.tasks, key)
		}
	}
}

func (uc *ClassificationQueueUseCase) ClearAll() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.tasks = make(map[string]*domain.ClassificationTask)
}

// Wait blocks until every started task has finished. Used by tests and
// shutdown paths.
func (uc *ClassificationQueueUseCase) Wait() {
	uc.wg.Wait()
}
