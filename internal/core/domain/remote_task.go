package domain

import "time"

type RemoteTaskStatus string

const (
	RemotePending    RemoteTaskStatus = "pending"
	RemoteProcessing RemoteTaskStatus = "processing"
	RemoteCompleted  RemoteTaskStatus = "completed"
	RemoteFailed     RemoteTaskStatus = "failed"
)

// Terminal reports whether the status may no longer change.
func (s RemoteTaskStatus) Terminal() bool {
	return s == RemoteCompleted || s == RemoteFailed
}

type RemoteTaskKind string

const (
	TaskGenerateTags  RemoteTaskKind = "generate_tags"
	TaskSuggestFolder RemoteTaskKind = "suggest_folder"
)

// RemoteTask is the transient record behind the submit+poll HTTP
// contract. Stored with a 24-hour TTL; once Status is terminal it is
// never reverted.
type RemoteTask struct {
	ID     string           `json:"task_id"`
	Kind   RemoteTaskKind   `json:"kind"`
	Status RemoteTaskStatus `json:"status"`

	URL        string   `json:"url"`
	FilterTags []string `json:"filter_tags,omitempty"`
	Folders    []string `json:"folders,omitempty"`

	Tags            []string `json:"tags,omitempty"`
	SuggestedFolder string   `json:"suggested_folder,omitempty"`

	Error        string `json:"error,omitempty"`
	RawAIContent string `json:"raw_ai_content,omitempty"`

	CreateTime time.Time `json:"createTime"`
	UpdateTime time.Time `json:"updateTime"`
}

// RemoteTaskTTL bounds the lifetime of a transient task record.
const RemoteTaskTTL = 24 * time.Hour
