// Package suggestions is the suggestion store: an ordered, deduplicated
// collection of pending suggestions plus per-skill usage metrics, persisted
// through a pluggable Backend.
package suggestions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Store holds suggestions in insertion order and usage metrics by skill.
// Every mutation rewrites both records through the backend. A single
// writer process is assumed.
type Store struct {
	backend Backend
	now     func() time.Time

	mu          sync.RWMutex
	suggestions []skills.Suggestion
	metrics     map[string]*skills.SkillMetrics
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for created_at and last_used
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store and loads its records. Corrupt or unreadable records
// are logged and treated as empty.
func New(ctx context.Context, backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		metrics: map[string]*skills.SkillMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	log := logger.G(ctx)

	loaded, err := s.backend.LoadSuggestions(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load suggestions, starting empty")
		loaded = nil
	}
	for i := range loaded {
		if loaded[i].ID == "" {
			loaded[i].ID = uuid.NewString()
		}
	}
	s.suggestions = loaded

	metrics, err := s.backend.LoadMetrics(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to load metrics, starting empty")
		metrics = nil
	}
	if metrics == nil {
		metrics = map[string]*skills.SkillMetrics{}
	}
	for name, m := range metrics {
		if m == nil {
			delete(metrics, name)
			continue
		}
		if m.SkillName == "" {
			m.SkillName = name
		}
	}
	s.metrics = metrics
}

// persist rewrites both records. Callers hold the write lock.
func (s *Store) persist(ctx context.Context) error {
	var result *multierror.Error
	if err := s.backend.SaveSuggestions(ctx, s.suggestions); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to save suggestions"))
	}
	if err := s.backend.SaveMetrics(ctx, s.metrics); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "failed to save metrics"))
	}
	return result.ErrorOrNil()
}

// Add appends a suggestion unless an identical pending one exists, in which
// case it is a silent no-op. It reports whether the suggestion was added.
// Missing ids and creation times are filled in.
func (s *Store) Add(ctx context.Context, suggestion skills.Suggestion) (bool, error) {
	if err := skills.ValidateSkillName(suggestion.SkillName); err != nil {
		return false, errors.Wrap(err, "invalid suggestion")
	}
	if !suggestion.Category.Valid() {
		return false, errors.Errorf("suggestion has unknown category %q", suggestion.Category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.insert(suggestion) {
		return false, nil
	}
	return true, s.persist(ctx)
}

// AddBatch adds each suggestion in order and persists once. It returns the
// number actually added; invalid entries are skipped and reported together.
func (s *Store) AddBatch(ctx context.Context, batch []skills.Suggestion) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var invalid *multierror.Error
	added := 0
	for _, suggestion := range batch {
		if skills.ValidateSkillName(suggestion.SkillName) != nil || !suggestion.Category.Valid() {
			invalid = multierror.Append(invalid, errors.Errorf("invalid suggestion for %q with category %q", suggestion.SkillName, suggestion.Category))
			continue
		}
		if s.insert(suggestion) {
			added++
		}
	}

	if added > 0 {
		if err := s.persist(ctx); err != nil {
			return added, err
		}
	}
	return added, invalid.ErrorOrNil()
}

// insert appends unless a pending duplicate exists. Callers hold the write lock.
func (s *Store) insert(suggestion skills.Suggestion) bool {
	for _, existing := range s.suggestions {
		if !existing.Applied && existing.SameAs(suggestion) {
			return false
		}
	}

	if suggestion.ID == "" {
		suggestion.ID = uuid.NewString()
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = s.now().UTC()
	}
	suggestion.Applied = false
	s.suggestions = append(s.suggestions, suggestion)
	return true
}

// Pending returns the non-applied suggestions matching every non-empty
// filter field, in insertion order.
func (s *Store) Pending(filter skills.Filter) []skills.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []skills.Suggestion
	for _, suggestion := range s.suggestions {
		if !suggestion.Applied && filter.Matches(suggestion) {
			out = append(out, suggestion)
		}
	}
	return out
}

// SkillBatch is the pending suggestions of one skill
type SkillBatch struct {
	SkillName   string              `json:"skill_name"`
	Suggestions []skills.Suggestion `json:"suggestions"`
}

// PendingBySkill groups pending suggestions by skill. Skills appear in the
// order their first pending suggestion was added.
func (s *Store) PendingBySkill(filter skills.Filter) []SkillBatch {
	var batches []SkillBatch
	index := map[string]int{}
	for _, suggestion := range s.Pending(filter) {
		i, ok := index[suggestion.SkillName]
		if !ok {
			i = len(batches)
			index[suggestion.SkillName] = i
			batches = append(batches, SkillBatch{SkillName: suggestion.SkillName})
		}
		batches[i].Suggestions = append(batches[i].Suggestions, suggestion)
	}
	return batches
}

// All returns every stored suggestion, applied ones included
func (s *Store) All() []skills.Suggestion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]skills.Suggestion(nil), s.suggestions...)
}

// MarkApplied marks every pending suggestion of a skill as applied. Any
// suggestion added after the caller read its batch is marked too; prefer
// MarkAppliedBatch after a merge.
func (s *Store) MarkApplied(ctx context.Context, skillName string) (int, error) {
	return s.mark(ctx, func(suggestion skills.Suggestion) bool {
		return suggestion.SkillName == skillName
	})
}

// MarkAppliedBatch marks exactly the given suggestions as applied,
// matching them by id.
func (s *Store) MarkAppliedBatch(ctx context.Context, batch []skills.Suggestion) (int, error) {
	ids := make(map[string]struct{}, len(batch))
	for _, suggestion := range batch {
		if suggestion.ID != "" {
			ids[suggestion.ID] = struct{}{}
		}
	}
	return s.mark(ctx, func(suggestion skills.Suggestion) bool {
		_, ok := ids[suggestion.ID]
		return ok
	})
}

func (s *Store) mark(ctx context.Context, match func(skills.Suggestion) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := 0
	for i := range s.suggestions {
		if !s.suggestions[i].Applied && match(s.suggestions[i]) {
			s.suggestions[i].Applied = true
			marked++
		}
	}
	if marked == 0 {
		return 0, nil
	}
	return marked, s.persist(ctx)
}

// ClearApplied removes applied suggestions and returns how many were removed
func (s *Store) ClearApplied(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.suggestions[:0:0]
	for _, suggestion := range s.suggestions {
		if !suggestion.Applied {
			kept = append(kept, suggestion)
		}
	}
	removed := len(s.suggestions) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	s.suggestions = kept
	return removed, s.persist(ctx)
}

// RecordUsage counts one invocation of a skill, creating its metrics on
// first use.
func (s *Store) RecordUsage(ctx context.Context, skillName string, success bool, execTimeMs int64) error {
	if skillName == "" {
		return errors.New("skill name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.metrics[skillName]
	if !ok {
		m = skills.NewSkillMetrics(skillName)
		s.metrics[skillName] = m
	}
	m.Record(success, execTimeMs, s.now())

	logger.G(ctx).
		WithField("skill", skillName).
		WithField("success", success).
		WithField("exec_time_ms", execTimeMs).
		Debug("recorded skill usage")

	return s.persist(ctx)
}

// Metrics returns a copy of a skill's metrics, zeroed when the skill was
// never used. Nothing is persisted.
func (s *Store) Metrics(skillName string) skills.SkillMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.metrics[skillName]
	if !ok {
		return *skills.NewSkillMetrics(skillName)
	}
	return *copyMetrics(map[string]*skills.SkillMetrics{skillName: m})[skillName]
}

// AllMetrics returns copies of every skill's metrics, sorted by skill name
func (s *Store) AllMetrics() []skills.SkillMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	copied := copyMetrics(s.metrics)
	out := make([]skills.SkillMetrics, 0, len(copied))
	for _, m := range copied {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SkillName < out[j].SkillName
	})
	return out
}
