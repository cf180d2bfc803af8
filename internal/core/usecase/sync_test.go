package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/markhub/classifier/internal/core/domain"
)

type syncSettingsFake struct {
	enabled bool
}

func (f syncSettingsFake) SyncEnabled() bool { return f.enabled }

func newSyncForTest(store *bookmarkStoreFake) *SyncUseCase {
	return NewSyncUseCase(store, syncSettingsFake{enabled: true})
}

func TestSyncNewBookmarkRequiresSyncEnabled(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true}
	uc := NewSyncUseCase(store, syncSettingsFake{enabled: false})

	result := uc.SyncNewBookmark(context.Background(), domain.BookmarkNode{ID: "c1", Title: "Go", URL: "https://go.dev"})
	if result.Success {
		t.Fatalf("expected failure with sync disabled")
	}
	if !strings.Contains(result.Error, "disabled") {
		t.Fatalf("expected disabled reason, got %q", result.Error)
	}
}

func TestSyncNewBookmarkRequiresAuthentication(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: false}
	uc := newSyncForTest(store)

	result := uc.SyncNewBookmark(context.Background(), domain.BookmarkNode{ID: "c1", Title: "Go", URL: "https://go.dev"})
	if result.Success {
		t.Fatalf("expected failure without authentication")
	}
	if !strings.Contains(result.Error, "not logged in") {
		t.Fatalf("expected auth reason, got %q", result.Error)
	}
}

func TestSyncNewBookmarkCreatesAndTriggersTags(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true}
	uc := newSyncForTest(store)

	node := domain.BookmarkNode{
		ID:         "c1",
		Title:      "Go",
		URL:        "https://go.dev",
		FolderPath: []string{"Dev", "Languages"},
	}
	result := uc.SyncNewBookmark(context.Background(), node)
	if !result.Success {
		t.Fatalf("SyncNewBookmark failed: %s", result.Error)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected one created bookmark, got %d", len(store.created))
	}
	created := store.created[0]
	if created.FolderID != "folder_Languages" || created.ChromeBookmarkID != "c1" {
		t.Fatalf("unexpected created bookmark: %+v", created)
	}
	if len(store.tagTriggers) != 1 || store.tagTriggers[0] != created.ID {
		t.Fatalf("expected tag suggestion trigger for %s, got %v", created.ID, store.tagTriggers)
	}
}

func TestSyncNewBookmarkOverwritesURLConflict(t *testing.T) {
	store := &bookmarkStoreFake{
		authenticated: true,
		bookmarks:     []domain.RemoteBookmark{{ID: "bm_7", Title: "Old title", URL: "https://go.dev"}},
	}
	uc := newSyncForTest(store)

	result := uc.SyncNewBookmark(context.Background(), domain.BookmarkNode{ID: "c1", Title: "New title", URL: "https://go.dev"})
	if !result.Success || result.RemoteID != "bm_7" {
		t.Fatalf("expected overwrite of bm_7, got %+v", result)
	}
	if len(store.created) != 0 {
		t.Fatalf("conflict should update, not create")
	}
	if len(store.updated) != 1 || store.updated[0].Title != "New title" {
		t.Fatalf("unexpected update: %+v", store.updated)
	}
	if len(store.tagTriggers) != 0 {
		t.Fatalf("tag suggestion should only fire for newly created bookmarks")
	}
}

func TestTagSuggestionFailureDoesNotFailSync(t *testing.T) {
	store := &bookmarkStoreFake{
		authenticated: true,
		tagErr:        errors.New("suggestion endpoint down"),
	}
	uc := newSyncForTest(store)

	result := uc.SyncNewBookmark(context.Background(), domain.BookmarkNode{ID: "c1", Title: "Go", URL: "https://go.dev"})
	if !result.Success {
		t.Fatalf("sync must succeed even when tag suggestion fails, got %+v", result)
	}
}

func TestCategorizeTagSuggestionError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"auth kind", domain.WrapError(domain.ErrUnauthorized, "trigger", errors.New("401")), "auth"},
		{"missing endpoint", fakeStatusErr{code: 404}, "endpoint_missing"},
		{"server fault", fakeStatusErr{code: 502}, "server"},
		{"anything else", errors.New("dial tcp: timeout"), "other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := categorizeTagSuggestionError(tc.err); got != tc.want {
				t.Fatalf("categorize(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

type fakeStatusErr struct {
	code int
}

func (e fakeStatusErr) Error() string       { return "status error" }
func (e fakeStatusErr) HTTPStatusCode() int { return e.code }

func TestSyncBookmarkDeletionByChromeID(t *testing.T) {
	store := &bookmarkStoreFake{
		authenticated: true,
		bookmarks: []domain.RemoteBookmark{
			{ID: "bm_1", URL: "https://a.dev", ChromeBookmarkID: "c1"},
			{ID: "bm_2", URL: "https://b.dev", ChromeBookmarkID: "c2"},
		},
	}
	uc := newSyncForTest(store)

	result := uc.SyncBookmarkDeletion(context.Background(), "c2")
	if !result.Success || result.RemoteID != "bm_2" {
		t.Fatalf("expected deletion of bm_2, got %+v", result)
	}
	if len(store.deleted) != 1 || store.deleted[0] != "bm_2" {
		t.Fatalf("unexpected deletions: %v", store.deleted)
	}
}

func TestSyncBookmarkDeletionMissingIsSuccess(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true}
	uc := newSyncForTest(store)

	result := uc.SyncBookmarkDeletion(context.Background(), "gone")
	if !result.Success {
		t.Fatalf("deleting an unknown bookmark should be a no-op success, got %+v", result)
	}
}

func TestBatchSyncContinuesPastFailures(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true}
	uc := newSyncForTest(store)

	nodes := []domain.BookmarkNode{
		{ID: "c1", Title: "Go", URL: "https://go.dev"},
		{ID: "c2", Title: "Broken folder-only node"},
		{ID: "c3", Title: "Rust", URL: "https://rust-lang.org"},
	}
	summary := uc.BatchSyncBookmarks(context.Background(), nodes)
	if summary.Successful != 2 || summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 2 successful / 1 failed", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "no url") {
		t.Fatalf("unexpected errors: %v", summary.Errors)
	}
}

func TestPerformInitialSyncWalksFoldersThenBookmarks(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true}
	uc := newSyncForTest(store)

	tree := []domain.BookmarkNode{
		{
			ID:    "f_dev",
			Title: "Dev",
			Children: []domain.BookmarkNode{
				{ID: "c1", Title: "Go", URL: "https://go.dev"},
				{
					ID:    "f_lang",
					Title: "Languages",
					Children: []domain.BookmarkNode{
						{ID: "c2", Title: "Rust", URL: "https://rust-lang.org"},
					},
				},
			},
		},
		{ID: "c3", Title: "News", URL: "https://news.ycombinator.com"},
	}

	result := uc.PerformInitialSync(context.Background(), tree)
	if !result.Success {
		t.Fatalf("PerformInitialSync failed: %v", result.Errors)
	}
	if result.FoldersCreated != 2 {
		t.Fatalf("expected 2 folders ensured, got %d", result.FoldersCreated)
	}
	if result.BookmarksCreated != 3 {
		t.Fatalf("expected 3 bookmarks created, got %d", result.BookmarksCreated)
	}

	// Nested bookmark lands in its full path.
	var rust *domain.RemoteBookmark
	for i := range store.created {
		if store.created[i].URL == "https://rust-lang.org" {
			rust = &store.created[i]
		}
	}
	if rust == nil || rust.FolderID != "folder_Languages" {
		t.Fatalf("expected nested bookmark in Languages folder, got %+v", rust)
	}
}

func TestPerformInitialSyncCollectsItemErrors(t *testing.T) {
	store := &bookmarkStoreFake{authenticated: true, createErr: errors.New("quota exceeded")}
	uc := newSyncForTest(store)

	tree := []domain.BookmarkNode{
		{ID: "c1", Title: "Go", URL: "https://go.dev"},
		{ID: "c2", Title: "Rust", URL: "https://rust-lang.org"},
	}
	result := uc.PerformInitialSync(context.Background(), tree)
	if result.Success {
		t.Fatalf("expected failure when creations fail")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected one error per failed bookmark, got %v", result.Errors)
	}
	if result.BookmarksCreated != 0 {
		t.Fatalf("expected zero created, got %d", result.BookmarksCreated)
	}
}
