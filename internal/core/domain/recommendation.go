package domain

// Folder is one candidate destination presented to the AI. The model
// must choose from this bounded set; inventing names is rejected at
// parse time.
type Folder struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path,omitempty"`
}

// FolderRecommendation is the validated outcome of a folder-suggestion
// call. Confidence is always within [0,1].
type FolderRecommendation struct {
	FolderID   string  `json:"folderId"`
	FolderName string  `json:"folderName"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Fallback   bool    `json:"fallback,omitempty"`
}

// SyncResult is the structured outcome of a single sync operation.
// Failures are reported here, not raised, so batches continue past
// individual items.
type SyncResult struct {
	Success  bool   `json:"success"`
	RemoteID string `json:"remoteId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchSyncSummary aggregates per-item outcomes of a bulk sync.
type BatchSyncSummary struct {
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

// InitialSyncResult reports the outcome of a full tree walk.
type InitialSyncResult struct {
	Success          bool     `json:"success"`
	FoldersCreated   int      `json:"foldersCreated"`
	BookmarksCreated int      `json:"bookmarksCreated"`
	Errors           []string `json:"errors"`
}

// BookmarkNode is one node of the browser bookmark tree handed to the
// initial sync. A node without a URL is a folder.
type BookmarkNode struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	ParentID string `json:"parentId,omitempty"`

	// FolderPath is the containing folder chain, root first.
	FolderPath []string       `json:"folderPath,omitempty"`
	Children   []BookmarkNode `json:"children,omitempty"`
}

// IsFolder reports whether the node is a container rather than a link.
func (n BookmarkNode) IsFolder() bool { return n.URL == "" }

// RemoteBookmark is a record in the external bookmark store.
type RemoteBookmark struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	URL              string   `json:"url"`
	FolderID         string   `json:"folderId,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	ChromeBookmarkID string   `json:"chromeBookmarkId,omitempty"`
}
