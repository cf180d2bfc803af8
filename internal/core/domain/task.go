package domain

import "time"

type TagStatus string

const (
	TagPending    TagStatus = "pending"
	TagGenerating TagStatus = "generating_tags"
	TagsGenerated TagStatus = "tags_generated"
	TagsFailed    TagStatus = "tags_failed"
)

type FolderStatus string

const (
	FolderPending    FolderStatus = "pending"
	FolderSuggesting FolderStatus = "suggesting_folder"
	FolderSuggested  FolderStatus = "folder_suggested"
	FolderFailed     FolderStatus = "folder_failed"
)

type OverallStatus string

const (
	StatusPending         OverallStatus = "pending"
	StatusProcessing      OverallStatus = "processing"
	StatusCompleted       OverallStatus = "completed"
	StatusPartiallyFailed OverallStatus = "partially_failed"
	StatusFailed          OverallStatus = "failed"
)

// Bookmark is the immutable snapshot taken when a capture event is
// accepted into the classification queue.
type Bookmark struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	AddedAt     time.Time `json:"addedAt"`
	Tags        []string  `json:"tags,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ClassificationTask tracks the AI tag and folder suggestions for one
// captured bookmark. The two sub-statuses advance independently; the
// overall status is always derived, never stored.
type ClassificationTask struct {
	ID       string   `json:"id"`
	Bookmark Bookmark `json:"bookmark"`

	TagStatus    TagStatus    `json:"tag_status"`
	FolderStatus FolderStatus `json:"folder_status"`

	GeneratedTags     []string `json:"generated_tags,omitempty"`
	SuggestedFolder   string   `json:"suggested_folder,omitempty"`
	SuggestedFolderID string   `json:"suggested_folder_id,omitempty"`

	TagError    string `json:"tag_error,omitempty"`
	FolderError string `json:"folder_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// OverallStatus derives the aggregate status from the two sub-statuses.
func (t *ClassificationTask) OverallStatus() OverallStatus {
	return DeriveOverallStatus(t.TagStatus, t.FolderStatus)
}

func DeriveOverallStatus(tag TagStatus, folder FolderStatus) OverallStatus {
	if tag == TagPending && folder == FolderPending {
		return StatusPending
	}
	if tag == TagGenerating || folder == FolderSuggesting {
		return StatusProcessing
	}

	tagDone := tag == TagsGenerated || tag == TagsFailed
	folderDone := folder == FolderSuggested || folder == FolderFailed
	if !tagDone || !folderDone {
		// One side finished while the other has not started yet.
		return StatusProcessing
	}

	switch {
	case tag == TagsGenerated && folder == FolderSuggested:
		return StatusCompleted
	case tag == TagsFailed && folder == FolderFailed:
		return StatusFailed
	default:
		return StatusPartiallyFailed
	}
}

// Terminal reports whether the task has reached a final aggregate state.
func (t *ClassificationTask) Terminal() bool {
	switch t.OverallStatus() {
	case StatusCompleted, StatusPartiallyFailed, StatusFailed:
		return true
	default:
		return false
	}
}

// DedupKey identifies a capture event: the same URL added at the same
// time must be coalesced into a single task.
func (b Bookmark) DedupKey() string {
	return b.URL + "_" + b.AddedAt.UTC().Format(time.RFC3339Nano)
}

// PendingBookmark is a capture buffered in durable extension-side
// storage while the web application is unreachable.
type PendingBookmark struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"createdAt"`
	Tags        []string  `json:"tags,omitempty"`
	Description string    `json:"description,omitempty"`
}

// DedupKey identifies a buffered capture across append and drain.
func (p PendingBookmark) DedupKey() string {
	return p.URL + "_" + p.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// ClassifiedBookmark is the payload sent from the extension to the app
// after the user confirmed an AI folder suggestion.
type ClassifiedBookmark struct {
	URL              string    `json:"url"`
	Title            string    `json:"title"`
	ChromeBookmarkID string    `json:"chromeBookmarkId"`
	ChromeParentID   string    `json:"chromeParentId"`
	FolderName       string    `json:"folderName"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Node converts the payload into the tree-node shape the sync path
// consumes. The classified folder becomes a single-segment path.
func (c ClassifiedBookmark) Node() BookmarkNode {
	node := BookmarkNode{
		ID:       c.ChromeBookmarkID,
		Title:    c.Title,
		URL:      c.URL,
		ParentID: c.ChromeParentID,
	}
	if c.FolderName != "" {
		node.FolderPath = []string{c.FolderName}
	}
	return node
}
