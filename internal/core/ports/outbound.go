package ports

import (
	"context"

	"github.com/markhub/classifier/internal/core/domain"
)

// AIService wraps the OpenAI-compatible chat-completion endpoint.
// Both calls are stateless; configuration problems surface before any
// network I/O.
type AIService interface {
	// GetFolderRecommendation picks a destination from candidates. A
	// nil recommendation with nil error means there was nothing to
	// choose from.
	GetFolderRecommendation(ctx context.Context, bookmark domain.Bookmark, candidates []domain.Folder) (*domain.FolderRecommendation, error)

	// GenerateTags selects tags for the page strictly from
	// existingTags. Parse failures are surfaced, never guessed around.
	GenerateTags(ctx context.Context, title, content string, existingTags []string) ([]string, error)
}

// ContentExtractor turns a URL into page text plus whatever metadata
// the page exposes.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) (domain.PageContent, error)
}

// TaskRecords persists transient submit+poll task records. Updates to
// a record whose status is already terminal must be ignored.
type TaskRecords interface {
	Create(ctx context.Context, task *domain.RemoteTask) error
	Get(ctx context.Context, id string) (*domain.RemoteTask, error)
	Update(ctx context.Context, task *domain.RemoteTask) error
}

// BookmarkStore is the external (remote) bookmark backend. It is an
// out-of-scope collaborator reached over its REST surface.
type BookmarkStore interface {
	IsAuthenticated() bool
	ListBookmarks(ctx context.Context) ([]domain.RemoteBookmark, error)
	FindByURL(ctx context.Context, url string) (*domain.RemoteBookmark, error)
	CreateBookmark(ctx context.Context, b domain.RemoteBookmark) (*domain.RemoteBookmark, error)
	UpdateBookmark(ctx context.Context, id string, b domain.RemoteBookmark) (*domain.RemoteBookmark, error)
	DeleteBookmark(ctx context.Context, id string) error

	// EnsureFolderPath creates missing path segments root-to-leaf and
	// returns the leaf folder id. cache carries looked-up/created ids
	// across calls within one sync operation.
	EnsureFolderPath(ctx context.Context, path []string, cache map[string]string) (string, error)

	ListFolders(ctx context.Context) ([]domain.Folder, error)

	// TriggerAITagSuggestion asks the backend to suggest and set tags
	// for an already-persisted bookmark.
	TriggerAITagSuggestion(ctx context.Context, bookmarkID string) error
}

// PendingStore is the durable buffer for captures taken while the web
// application is unreachable. A record leaves the store only after
// acknowledged delivery.
type PendingStore interface {
	Append(ctx context.Context, b domain.PendingBookmark) error

	// Drain hands every buffered record to send and removes exactly
	// those for which send returned nil. Records appended while a
	// drain is running are kept.
	Drain(ctx context.Context, send func(domain.PendingBookmark) error) (sent int, remaining int, err error)
}

// CaptureBus moves bookmark capture events between the agent and the
// classification consumer.
type CaptureBus interface {
	PublishCapture(ctx context.Context, b domain.Bookmark) error
	PublishCaptureBatch(ctx context.Context, bs []domain.Bookmark) error
	SubscribeCaptures(ctx context.Context, handler func(context.Context, []domain.Bookmark) error) error
}
