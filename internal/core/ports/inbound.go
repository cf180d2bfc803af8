package ports

import (
	"context"

	"github.com/markhub/classifier/internal/core/domain"
)

// ClassificationQueue is the inbound contract of the in-memory task
// store. Enqueueing is synchronous; classification runs in the
// background.
type ClassificationQueue interface {
	Add(bookmark domain.Bookmark)
	AddBatch(bookmarks []domain.Bookmark)
	Tasks() []domain.ClassificationTask
	HasActive() bool
	Counts() (processing, completed, failed int)
	ClearCompleted()
	ClearAll()
}

// TaskSubmitter is the inbound contract of the backend task proxy.
type TaskSubmitter interface {
	SubmitTagGeneration(ctx context.Context, req domain.TagGenerationRequest) (*domain.RemoteTask, error)
	SubmitFolderSuggestion(ctx context.Context, req domain.FolderSuggestionRequest) (*domain.RemoteTask, error)
	GetTask(ctx context.Context, id string) (*domain.RemoteTask, error)
}

// BookmarkSyncer reconciles captured bookmarks with the remote store.
type BookmarkSyncer interface {
	SyncNewBookmark(ctx context.Context, node domain.BookmarkNode) domain.SyncResult
	SyncBookmarkUpdate(ctx context.Context, node domain.BookmarkNode) domain.SyncResult
	SyncBookmarkDeletion(ctx context.Context, chromeBookmarkID string) domain.SyncResult
	BatchSyncBookmarks(ctx context.Context, nodes []domain.BookmarkNode) domain.BatchSyncSummary
	PerformInitialSync(ctx context.Context, tree []domain.BookmarkNode) domain.InitialSyncResult
}
