package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/markhub/classifier/internal/core/domain"
	"github.com/markhub/classifier/internal/core/ports"
)

// SyncSettings exposes the runtime switch for synchronization.
type SyncSettings interface {
	SyncEnabled() bool
}

// SyncUseCase reconciles browser-side bookmark events with the remote
// store. Every operation checks the sync switch and authentication
// first and reports failures in its result instead of raising them.
type SyncUseCase struct {
	store    ports.BookmarkStore
	settings SyncSettings

	// limiter paces writes so bulk syncs do not trip API limits.
	limiter *rate.Limiter
}

func NewSyncUseCase(store ports.BookmarkStore, settings SyncSettings) *SyncUseCase {
	return &SyncUseCase{
		store:    store,
		settings: settings,
		limiter:  rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

func (uc *SyncUseCase) precondition() error {
	if !uc.settings.SyncEnabled() {
		return domain.WrapError(domain.ErrConfiguration, "sync", errors.New("synchronization is disabled"))
	}
	if !uc.store.IsAuthenticated() {
		return domain.WrapError(domain.ErrUnauthorized, "sync", errors.New("not logged in"))
	}
	return nil
}

func (uc *SyncUseCase) SyncNewBookmark(ctx context.Context, node domain.BookmarkNode) domain.SyncResult {
	return uc.syncUpsert(ctx, node, make(map[string]string), true)
}

func (uc *SyncUseCase) SyncBookmarkUpdate(ctx context.Context, node domain.BookmarkNode) domain.SyncResult {
	return uc.syncUpsert(ctx, node, make(map[string]string), false)
}

func (uc *SyncUseCase) syncUpsert(ctx context.Context, node domain.BookmarkNode, folderCache map[string]string, triggerTags bool) domain.SyncResult {
	if err := uc.precondition(); err != nil {
		return domain.SyncResult{Error: err.Error()}
	}
	if node.URL == "" {
		return domain.SyncResult{Error: "bookmark node has no url"}
	}

	folderID, err := uc.store.EnsureFolderPath(ctx, node.FolderPath, folderCache)
	if err != nil {
		return domain.SyncResult{Error: fmt.Sprintf("ensure folder path: %v", err)}
	}

	if err := uc.limiter.Wait(ctx); err != nil {
		return domain.SyncResult{Error: err.Error()}
	}

	existing, err := uc.store.FindByURL(ctx, node.URL)
	if err != nil {
		return domain.SyncResult{Error: fmt.Sprintf("lookup bookmark: %v", err)}
	}

	if existing != nil {
		// Conflicts resolve in favor of the browser-side data.
		existing.Title = node.Title
		existing.FolderID = folderID
		existing.ChromeBookmarkID = node.ID
		updated, err := uc.store.UpdateBookmark(ctx, existing.ID, *existing)
		if err != nil {
			return domain.SyncResult{Error: fmt.Sprintf("update bookmark: %v", err)}
		}
		return domain.SyncResult{Success: true, RemoteID: updated.ID}
	}

	created, err := uc.store.CreateBookmark(ctx, domain.RemoteBookmark{
		Title:            node.Title,
		URL:              node.URL,
		FolderID:         folderID,
		ChromeBookmarkID: node.ID,
	})
	if err != nil {
		return domain.SyncResult{Error: fmt.Sprintf("create bookmark: %v", err)}
	}

	if triggerTags {
		uc.requestTagSuggestion(ctx, created.ID, node.Title)
	}
	return domain.SyncResult{Success: true, RemoteID: created.ID}
}

// requestTagSuggestion asks the backend to tag a freshly created
// bookmark. This is best-effort: the sync already succeeded, so every
// failure mode is categorized and logged, never returned.
func (uc *SyncUseCase) requestTagSuggestion(ctx context.Context, remoteID, title string) {
	err := uc.store.TriggerAITagSuggestion(ctx, remoteID)
	if err == nil {
		return
	}

	switch category := categorizeTagSuggestionError(err); category {
	case "endpoint_missing":
		slog.Info("tag_suggestion_unavailable", "bookmark", title, "reason", "endpoint not deployed")
	case "auth":
		slog.Warn("tag_suggestion_unauthorized", "bookmark", title, "error", err)
	case "server":
		slog.Warn("tag_suggestion_server_error", "bookmark", title, "error", err)
	default:
		slog.Warn("tag_suggestion_failed", "bookmark", title, "error", err)
	}
}

func categorizeTagSuggestionError(err error) string {
	if domain.IsKind(err, domain.ErrUnauthorized) {
		return "auth"
	}
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		switch code := statusErr.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return "endpoint_missing"
		case code >= 500:
			return "server"
		}
	}
	return "other"
}

func (uc *SyncUseCase) SyncBookmarkDeletion(ctx context.Context, chromeBookmarkID string) domain.SyncResult {
	if err := uc.precondition(); err != nil {
		return domain.SyncResult{Error: err.Error()}
	}

	bookmarks, err := uc.store.ListBookmarks(ctx)
	if err != nil {
		return domain.SyncResult{Error: fmt.Sprintf("list bookmarks: %v", err)}
	}

	for _, b := range bookmarks {
		if b.ChromeBookmarkID != chromeBookmarkID {
			continue
		}
		if err := uc.limiter.Wait(ctx); err != nil {
			return domain.SyncResult{Error: err.Error()}
		}
		if err := uc.store.DeleteBookmark(ctx, b.ID); err != nil {
			return domain.SyncResult{Error: fmt.Sprintf("delete bookmark: %v", err)}
		}
		return domain.SyncResult{Success: true, RemoteID: b.ID}
	}

	// Nothing to delete is a success from the browser's point of view.
	return domain.SyncResult{Success: true}
}

func (uc *SyncUseCase) BatchSyncBookmarks(ctx context.Context, nodes []domain.BookmarkNode) domain.BatchSyncSummary {
	summary := domain.BatchSyncSummary{Errors: []string{}}
	folderCache := make(map[string]string)

	for _, node := range nodes {
		result := uc.syncUpsert(ctx, node, folderCache, true)
		if result.Success {
			summary.Successful++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %s", node.Title, result.Error))
	}
	return summary
}

// PerformInitialSync walks the whole browser tree: folders first so
// bookmarks can reference them, then bookmarks with URL-conflict
// overwrite. Item failures are collected and do not stop the walk.
func (uc *SyncUseCase) PerformInitialSync(ctx context.Context, tree []domain.BookmarkNode) domain.InitialSyncResult {
	result := domain.InitialSyncResult{Errors: []string{}}
	if err := uc.precondition(); err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	var folders []domain.BookmarkNode
	var bookmarks []domain.BookmarkNode
	flattenTree(tree, nil, &folders, &bookmarks)

	folderCache := make(map[string]string)
	ensured := make(map[string]bool)

	for _, folder := range folders {
		path := append(append([]string(nil), folder.FolderPath...), folder.Title)
		key := fmt.Sprint(path)
		if ensured[key] {
			continue
		}
		if err := uc.limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result
		}
		if _, err := uc.store.EnsureFolderPath(ctx, path, folderCache); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create folder %s: %v", folder.Title, err))
			continue
		}
		ensured[key] = true
		result.FoldersCreated++
	}

	for _, bookmark := range bookmarks {
		item := uc.syncUpsert(ctx, bookmark, folderCache, true)
		if item.Success {
			result.BookmarksCreated++
			continue
		}
		result.Errors = append(result.Errors, fmt.Sprintf("sync bookmark %s: %s", bookmark.Title, item.Error))
	}

	result.Success = len(result.Errors) == 0
	return result
}

func flattenTree(nodes []domain.BookmarkNode, path []string, folders, bookmarks *[]domain.BookmarkNode) {
	for _, node := range nodes {
		node.FolderPath = append([]string(nil), path...)
		if node.IsFolder() {
			*folders = append(*folders, node)
			flattenTree(node.Children, append(path, node.Title), folders, bookmarks)
			continue
		}
		*bookmarks = append(*bookmarks, node)
	}
}
