package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// Settings are the user-tunable values that survive restarts, as
// opposed to Config which is fixed at process start.
type Settings struct {
	AIAPIKey     string `yaml:"aiApiKey"`
	AIAPIBaseURL string `yaml:"aiApiBaseUrl"`
	AIModelName  string `yaml:"aiModelName"`

	MarkHubAPIURL string `yaml:"markhubApiUrl"`
	AuthToken     string `yaml:"authToken"`

	SyncEnabled bool   `yaml:"syncEnabled"`
	Language    string `yaml:"language"`
}

func defaultSettings() Settings {
	return Settings{
		AIAPIBaseURL:  "https://api.openai.com/v1",
		AIModelName:   "gpt-3.5-turbo",
		MarkHubAPIURL: "https://markhub.app",
		SyncEnabled:   false,
		Language:      "en",
	}
}

// Manager loads Settings lazily on first use and keeps the in-memory
// copy and the file in sync. Updates merge into the current values
// and persist before they become visible to readers.
type Manager struct {
	path string

	mu       sync.RWMutex
	loaded   bool
	settings Settings
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

func (m *Manager) Get(ctx context.Context) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	m.mu.RLock()
	if m.loaded {
		settings := m.settings
		m.mu.RUnlock()
		return settings, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loaded {
		return m.settings, nil
	}
	if err := m.loadLocked(); err != nil {
		return Settings{}, err
	}
	return m.settings, nil
}

// GetSync returns the current settings, falling back to defaults when
// the file has not been read yet and cannot be.
func (m *Manager) GetSync() Settings {
	settings, err := m.Get(context.Background())
	if err != nil {
		return defaultSettings()
	}
	return settings
}

// Update applies mutate to the current settings and persists the
// result atomically. On persist failure the in-memory copy is left
// unchanged.
func (m *Manager) Update(ctx context.Context, mutate func(*Settings)) (Settings, error) {
	if err := ctx.Err(); err != nil {
		return Settings{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		if err := m.loadLocked(); err != nil {
			return Settings{}, err
		}
	}

	next := m.settings
	mutate(&next)

	if err := m.persist(next); err != nil {
		return Settings{}, err
	}
	m.settings = next
	return next, nil
}

func (m *Manager) loadLocked() error {
	m.settings = defaultSettings()

	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		m.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if err := yaml.Unmarshal(raw, &m.settings); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	m.loaded = true
	return nil
}

func (m *Manager) persist(settings Settings) error {
	payload, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create settings temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close settings temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
