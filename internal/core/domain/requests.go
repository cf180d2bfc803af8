package domain

import (
	"errors"
	"strings"
)

// AICredentials are the per-user overrides a proxied submission may
// carry; unset fields fall back to server-side defaults.
type AICredentials struct {
	APIKey     string `json:"customApiKey,omitempty"`
	APIBaseURL string `json:"customApiBaseUrl,omitempty"`
	ModelName  string `json:"customModelName,omitempty"`
}

// TagGenerationRequest submits a tag-generation task for a raw URL.
type TagGenerationRequest struct {
	URL         string   `json:"url"`
	FilterTags  []string `json:"filter_tags"`
	Credentials AICredentials
}

// Validate rejects malformed input synchronously, before any async
// work is scheduled.
func (r TagGenerationRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return WrapError(ErrValidation, "validate tag generation request", errors.New("url is required"))
	}
	return nil
}

// FolderSuggestionRequest submits a folder-suggestion task for a raw
// URL against a bounded candidate list.
type FolderSuggestionRequest struct {
	URL         string   `json:"url"`
	Folders     []string `json:"folders"`
	Credentials AICredentials
}

func (r FolderSuggestionRequest) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return WrapError(ErrValidation, "validate folder suggestion request", errors.New("url is required"))
	}
	if len(r.Folders) == 0 {
		return WrapError(ErrValidation, "validate folder suggestion request", errors.New("folders must be a non-empty list"))
	}
	return nil
}
