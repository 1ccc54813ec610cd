package suggestions

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"

	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Backend persists the two store records. Each Save is a full rewrite of
// its record.
type Backend interface {
	LoadSuggestions(ctx context.Context) ([]skills.Suggestion, error)
	SaveSuggestions(ctx context.Context, suggestions []skills.Suggestion) error
	LoadMetrics(ctx context.Context) (map[string]*skills.SkillMetrics, error)
	SaveMetrics(ctx context.Context, metrics map[string]*skills.SkillMetrics) error
}

const (
	suggestionsFile = "suggestions.json"
	metricsFile     = "metrics.json"
)

// JSONBackend stores suggestions.json and metrics.json in a directory.
// Files are read and written under an advisory file lock.
type JSONBackend struct {
	dir string
}

// NewJSONBackend creates a JSON backend rooted at dir. The directory is
// created by the first save, so read-only use leaves the filesystem alone.
func NewJSONBackend(dir string) (*JSONBackend, error) {
	if dir == "" {
		return nil, errors.New("data directory is required")
	}
	return &JSONBackend{dir: dir}, nil
}

// Dir returns the data directory
func (b *JSONBackend) Dir() string {
	return b.dir
}

// LoadSuggestions reads suggestions.json. A missing file is an empty list.
func (b *JSONBackend) LoadSuggestions(_ context.Context) ([]skills.Suggestion, error) {
	var out []skills.Suggestion
	if err := b.read(suggestionsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSuggestions rewrites suggestions.json
func (b *JSONBackend) SaveSuggestions(_ context.Context, suggestions []skills.Suggestion) error {
	if suggestions == nil {
		suggestions = []skills.Suggestion{}
	}
	return b.write(suggestionsFile, suggestions)
}

// LoadMetrics reads metrics.json. A missing file is an empty mapping.
func (b *JSONBackend) LoadMetrics(_ context.Context) (map[string]*skills.SkillMetrics, error) {
	out := map[string]*skills.SkillMetrics{}
	if err := b.read(metricsFile, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveMetrics rewrites metrics.json
func (b *JSONBackend) SaveMetrics(_ context.Context, metrics map[string]*skills.SkillMetrics) error {
	if metrics == nil {
		metrics = map[string]*skills.SkillMetrics{}
	}
	return b.write(metricsFile, metrics)
}

func (b *JSONBackend) read(name string, v any) error {
	path := filepath.Join(b.dir, name)
	data, err := lockedfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read %s", path)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %s", path)
	}
	return nil
}

func (b *JSONBackend) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to marshal %s", name)
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create data directory")
	}
	path := filepath.Join(b.dir, name)
	if err := lockedfile.Write(path, bytes.NewReader(data), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// MemoryBackend keeps records in memory, for tests and the "memory" store
type MemoryBackend struct {
	mu          sync.Mutex
	suggestions []skills.Suggestion
	metrics     map[string]*skills.SkillMetrics
	saves       int
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{metrics: map[string]*skills.SkillMetrics{}}
}

// LoadSuggestions returns a copy of the stored suggestions
func (b *MemoryBackend) LoadSuggestions(_ context.Context) ([]skills.Suggestion, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]skills.Suggestion(nil), b.suggestions...), nil
}

// SaveSuggestions replaces the stored suggestions
func (b *MemoryBackend) SaveSuggestions(_ context.Context, suggestions []skills.Suggestion) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.suggestions = append([]skills.Suggestion(nil), suggestions...)
	b.saves++
	return nil
}

// LoadMetrics returns a copy of the stored metrics
func (b *MemoryBackend) LoadMetrics(_ context.Context) (map[string]*skills.SkillMetrics, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyMetrics(b.metrics), nil
}

// SaveMetrics replaces the stored metrics
func (b *MemoryBackend) SaveMetrics(_ context.Context, metrics map[string]*skills.SkillMetrics) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.metrics = copyMetrics(metrics)
	b.saves++
	return nil
}

// Saves counts Save calls, so tests can assert dry runs write nothing
func (b *MemoryBackend) Saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saves
}

func copyMetrics(in map[string]*skills.SkillMetrics) map[string]*skills.SkillMetrics {
	out := make(map[string]*skills.SkillMetrics, len(in))
	for k, v := range in {
		m := *v
		if v.LastUsed != nil {
			t := *v.LastUsed
			m.LastUsed = &t
		}
		out[k] = &m
	}
	return out
}
