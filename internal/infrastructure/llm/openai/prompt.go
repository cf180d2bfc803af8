package openai

import (
	"fmt"
	"strings"

	"github.com/markhub/classifier/internal/core/domain"
)

const (
	folderContentLimit = 10000
	tagContentLimit    = 15000
)

const folderSystemPrompt = `You are a bookmark organization assistant. Given a bookmark and a list of existing folders, pick the single most suitable folder. Respond with a JSON object only, no prose: {"folderId": "...", "folderName": "...", "confidence": 0.0, "reason": "..."}. The folderId and folderName must come from the provided list. Confidence is a number between 0 and 1.`

const tagSystemPrompt = `You are a bookmark tagging assistant. Suggest concise tags describing the web page. When a list of existing tags is provided, prefer tags from that list over inventing near-duplicates. Respond with a JSON object only, no prose: {"tags": ["...", "..."]}. Return an empty array when nothing fits.`

func buildFolderMessages(bookmark domain.Bookmark, candidates []domain.Folder) []message {
	var b strings.Builder
	fmt.Fprintf(&b, "Bookmark title: %s\n", bookmark.Title)
	fmt.Fprintf(&b, "Bookmark URL: %s\n", bookmark.URL)
	if bookmark.Description != "" {
		fmt.Fprintf(&b, "Page content:\n%s\n", truncate(bookmark.Description, folderContentLimit))
	}
	b.WriteString("\nAvailable folders:\n")
	for _, f := range candidates {
		fmt.Fprintf(&b, "- id=%s name=%s", f.ID, f.Title)
		if f.Path != "" {
			fmt.Fprintf(&b, " path=%s", f.Path)
		}
		b.WriteByte('\n')
	}
	return []message{
		{Role: "system", Content: folderSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func buildTagMessages(title, content string, existingTags []string) []message {
	var b strings.Builder
	fmt.Fprintf(&b, "Page title: %s\n", title)
	fmt.Fprintf(&b, "Page content:\n%s\n", truncate(content, tagContentLimit))
	if len(existingTags) > 0 {
		b.WriteString("\nExisting tags: ")
		b.WriteString(strings.Join(existingTags, ", "))
		b.WriteByte('\n')
	}
	return []message{
		{Role: "system", Content: tagSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
