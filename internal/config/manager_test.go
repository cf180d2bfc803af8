package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestManagerReturnsDefaultsWhenFileMissing(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "settings.yaml"))

	settings, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if settings.AIAPIBaseURL != "https://api.openai.com/v1" {
		t.Fatalf("expected default base url, got %q", settings.AIAPIBaseURL)
	}
	if settings.AIModelName != "gpt-3.5-turbo" {
		t.Fatalf("expected default model, got %q", settings.AIModelName)
	}
	if settings.SyncEnabled {
		t.Fatalf("expected sync disabled by default")
	}
}

func TestManagerUpdatePersistsAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	m := NewManager(path)

	updated, err := m.Update(context.Background(), func(s *Settings) {
		s.AIAPIKey = "sk-test"
		s.SyncEnabled = true
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.AIAPIKey != "sk-test" || !updated.SyncEnabled {
		t.Fatalf("unexpected updated settings: %+v", updated)
	}
	// Untouched fields keep their defaults through the merge.
	if updated.AIModelName != "gpt-3.5-turbo" {
		t.Fatalf("expected default model to survive update, got %q", updated.AIModelName)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read persisted settings: %v", err)
	}
	if !strings.Contains(string(raw), "sk-test") {
		t.Fatalf("expected persisted api key, got:\n%s", raw)
	}

	// A fresh manager sees the persisted values.
	reloaded, err := NewManager(path).Get(context.Background())
	if err != nil {
		t.Fatalf("Get() after reload error = %v", err)
	}
	if reloaded.AIAPIKey != "sk-test" || !reloaded.SyncEnabled {
		t.Fatalf("unexpected reloaded settings: %+v", reloaded)
	}
}

func TestManagerGetSyncFallsBackOnUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("{{not yaml"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	m := NewManager(path)
	settings := m.GetSync()
	if settings.AIAPIBaseURL != "https://api.openai.com/v1" {
		t.Fatalf("expected defaults on parse failure, got %+v", settings)
	}
}

func TestManagerUpdateFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	m := NewManager(path)

	if _, err := m.Update(context.Background(), func(s *Settings) { s.Language = "zh" }); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// Make the directory read-only so the next persist fails.
	if err := os.Chmod(dir, 0o555); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	if _, err := m.Update(context.Background(), func(s *Settings) { s.Language = "fr" }); err == nil {
		t.Skip("filesystem permits writes despite read-only directory")
	}

	current, err := m.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if current.Language != "zh" {
		t.Fatalf("expected in-memory settings unchanged after failed persist, got %q", current.Language)
	}
}
