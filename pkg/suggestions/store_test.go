package suggestions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

var fixedNow = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func newMemoryStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return New(context.Background(), backend, WithClock(func() time.Time { return fixedNow })), backend
}

func pref(skill, content string) skills.Suggestion {
	return skills.Suggestion{SkillName: skill, Category: skills.CategoryPreference, Content: content}
}

func TestAddDeduplicatesPending(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	added, err := store.Add(ctx, pref("dashboard", "Use dark theme"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.Add(ctx, pref("dashboard", "Use dark theme"))
	require.NoError(t, err)
	assert.False(t, added)

	pending := store.Pending(skills.Filter{})
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)
	assert.Equal(t, fixedNow, pending[0].CreatedAt)

	// exact match only: different category or whitespace is a new suggestion
	_, err = store.Add(ctx, skills.Suggestion{SkillName: "dashboard", Category: skills.CategoryCorrection, Content: "Use dark theme"})
	require.NoError(t, err)
	_, err = store.Add(ctx, pref("dashboard", "Use dark theme "))
	require.NoError(t, err)
	assert.Len(t, store.Pending(skills.Filter{}), 3)
}

func TestAddAfterAppliedCreatesNewEntry(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	_, err := store.Add(ctx, pref("dashboard", "Use dark theme"))
	require.NoError(t, err)
	_, err = store.MarkApplied(ctx, "dashboard")
	require.NoError(t, err)

	added, err := store.Add(ctx, pref("dashboard", "Use dark theme"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, store.All(), 2)
	assert.Len(t, store.Pending(skills.Filter{}), 1)
}

func TestAddRejectsInvalidSuggestions(t *testing.T) {
	ctx := context.Background()
	store, backend := newMemoryStore(t)

	_, err := store.Add(ctx, skills.Suggestion{SkillName: "x", Category: "bogus", Content: "c"})
	assert.Error(t, err)
	_, err = store.Add(ctx, pref("", "c"))
	assert.Error(t, err)
	_, err = store.Add(ctx, skills.NewSuggestion("../escaped", skills.CategoryImprovement, "x"))
	assert.Error(t, err)
	assert.Zero(t, backend.Saves())

	added, err := store.AddBatch(ctx, []skills.Suggestion{pref("../escaped", "x"), pref(`a\b`, "y")})
	assert.Error(t, err)
	assert.Zero(t, added)
	assert.Empty(t, store.All())
}

func TestAddBatch(t *testing.T) {
	ctx := context.Background()
	store, backend := newMemoryStore(t)

	added, err := store.AddBatch(ctx, []skills.Suggestion{
		pref("a", "one"),
		pref("a", "one"),
		{SkillName: "a", Category: "nope", Content: "bad"},
		pref("b", "two"),
	})
	require.Error(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 2, backend.Saves(), "one rewrite of each record")

	pending := store.Pending(skills.Filter{})
	require.Len(t, pending, 2)
	assert.Equal(t, "one", pending[0].Content)
	assert.Equal(t, "two", pending[1].Content)
}

func TestPendingFilterComposition(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	for _, s := range []skills.Suggestion{
		{SkillName: "x", Category: skills.CategoryTrigger, Content: "1", UserID: "u", Org: "o"},
		{SkillName: "x", Category: skills.CategoryTrigger, Content: "2", UserID: "u", Org: "other"},
		{SkillName: "x", Category: skills.CategoryTrigger, Content: "3", UserID: "v", Org: "o"},
		{SkillName: "y", Category: skills.CategoryTrigger, Content: "4", UserID: "u", Org: "o"},
		{SkillName: "x", Category: skills.CategoryTrigger, Content: "5", UserID: "u", Org: "o"},
	} {
		_, err := store.Add(ctx, s)
		require.NoError(t, err)
	}

	contents := func(list []skills.Suggestion) []string {
		var out []string
		for _, s := range list {
			out = append(out, s.Content)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   skills.Filter
		expected []string
	}{
		{name: "no filter", filter: skills.Filter{}, expected: []string{"1", "2", "3", "4", "5"}},
		{name: "skill", filter: skills.Filter{SkillName: "x"}, expected: []string{"1", "2", "3", "5"}},
		{name: "skill and user", filter: skills.Filter{SkillName: "x", UserID: "u"}, expected: []string{"1", "2", "5"}},
		{name: "all three", filter: skills.Filter{SkillName: "x", UserID: "u", Org: "o"}, expected: []string{"1", "5"}},
		{name: "org only", filter: skills.Filter{Org: "o"}, expected: []string{"1", "3", "4", "5"}},
		{name: "no match", filter: skills.Filter{SkillName: "z"}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, contents(store.Pending(tt.filter)))
		})
	}
}

func TestPendingBySkillKeepsFirstAppearanceOrder(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	for _, s := range []skills.Suggestion{pref("b", "1"), pref("a", "2"), pref("b", "3")} {
		_, err := store.Add(ctx, s)
		require.NoError(t, err)
	}

	batches := store.PendingBySkill(skills.Filter{})
	require.Len(t, batches, 2)
	assert.Equal(t, "b", batches[0].SkillName)
	assert.Len(t, batches[0].Suggestions, 2)
	assert.Equal(t, "a", batches[1].SkillName)
}

func TestMarkAppliedBatchOnlyMarksMergedSuggestions(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	_, err := store.Add(ctx, pref("dashboard", "first"))
	require.NoError(t, err)
	batch := store.Pending(skills.Filter{SkillName: "dashboard"})

	// added between reading the batch and marking it
	_, err = store.Add(ctx, pref("dashboard", "late"))
	require.NoError(t, err)

	marked, err := store.MarkAppliedBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	pending := store.Pending(skills.Filter{SkillName: "dashboard"})
	require.Len(t, pending, 1)
	assert.Equal(t, "late", pending[0].Content)

	marked, err = store.MarkApplied(ctx, "dashboard")
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Empty(t, store.Pending(skills.Filter{}))
}

func TestClearApplied(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	for _, s := range []skills.Suggestion{pref("a", "1"), pref("b", "2")} {
		_, err := store.Add(ctx, s)
		require.NoError(t, err)
	}
	_, err := store.MarkApplied(ctx, "a")
	require.NoError(t, err)

	removed, err := store.ClearApplied(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].SkillName)

	removed, err = store.ClearApplied(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRecordUsageAndMetrics(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	untouched := store.Metrics("dashboard")
	assert.Equal(t, "dashboard", untouched.SkillName)
	assert.Zero(t, untouched.TotalCalls)
	assert.Nil(t, untouched.LastUsed)
	assert.Empty(t, store.AllMetrics(), "reading metrics does not create them")

	require.NoError(t, store.RecordUsage(ctx, "dashboard", true, 100))
	require.NoError(t, store.RecordUsage(ctx, "dashboard", false, 50))
	require.NoError(t, store.RecordUsage(ctx, "alpha", true, 10))

	m := store.Metrics("dashboard")
	assert.Equal(t, int64(2), m.TotalCalls)
	assert.Equal(t, int64(1), m.SuccessfulCalls)
	assert.Equal(t, int64(1), m.FailedCalls)
	assert.Equal(t, int64(150), m.TotalExecTimeMs)
	assert.InDelta(t, 0.5, m.SuccessRate(), 1e-9)
	assert.InDelta(t, 75.0, m.AvgExecTimeMs(), 1e-9)
	require.NotNil(t, m.LastUsed)
	assert.Equal(t, fixedNow, *m.LastUsed)

	all := store.AllMetrics()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].SkillName)

	assert.Error(t, store.RecordUsage(ctx, "", true, 1))
}

func TestJSONBackendPersistence(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), ".optimizer")

	backend, err := NewJSONBackend(dir)
	require.NoError(t, err)
	store := New(ctx, backend)
	assert.Empty(t, store.All())
	assert.NoDirExists(t, dir, "loading must not create the data directory")

	_, err = store.Add(ctx, skills.Suggestion{
		SkillName: "dashboard", Category: skills.CategoryTrigger, Content: "sales report",
		UserID: "u1", Org: "acme",
	})
	require.NoError(t, err)
	require.NoError(t, store.RecordUsage(ctx, "dashboard", true, 42))

	assert.FileExists(t, filepath.Join(dir, "suggestions.json"))
	assert.FileExists(t, filepath.Join(dir, "metrics.json"))

	reopened := New(ctx, backend)
	pending := reopened.Pending(skills.Filter{UserID: "u1", Org: "acme"})
	require.Len(t, pending, 1)
	assert.Equal(t, "sales report", pending[0].Content)
	assert.Equal(t, int64(42), reopened.Metrics("dashboard").TotalExecTimeMs)
}

func TestJSONBackendToleratesLegacyRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	legacy := `[
  {
    "skill_name": "dashboard",
    "category": "preference",
    "content": "Use dark theme",
    "reason": "",
    "session_id": "abc",
    "created_at": "2025-11-02T10:00:00",
    "applied": false
  }
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suggestions.json"), []byte(legacy), 0o644))

	backend, err := NewJSONBackend(dir)
	require.NoError(t, err)
	store := New(ctx, backend)

	pending := store.Pending(skills.Filter{})
	require.Len(t, pending, 1)
	assert.Equal(t, "abc", pending[0].SessionID)
	assert.True(t, time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC).Equal(pending[0].CreatedAt))
}

func TestJSONBackendMissingOptionalFields(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	legacy := `[
  {
    "skill_name": "dashboard",
    "category": "preference",
    "content": "Use dark theme",
    "created_at": "2025-11-02T10:00:00Z",
    "applied": false
  }
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suggestions.json"), []byte(legacy), 0o644))

	backend, err := NewJSONBackend(dir)
	require.NoError(t, err)
	store := New(ctx, backend)

	pending := store.Pending(skills.Filter{})
	require.Len(t, pending, 1)
	assert.Empty(t, pending[0].UserID)
	assert.Empty(t, pending[0].Org)
	assert.NotEmpty(t, pending[0].ID, "records without id get one on load")
}

func TestCorruptRecordsAreTreatedAsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "suggestions.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metrics.json"), []byte(`{"dashboard": {"total_calls": 4}}`), 0o644))

	backend, err := NewJSONBackend(dir)
	require.NoError(t, err)
	store := New(ctx, backend)

	assert.Empty(t, store.All())
	m := store.Metrics("dashboard")
	assert.Equal(t, "dashboard", m.SkillName)
	assert.Equal(t, int64(4), m.TotalCalls)

	added, err := store.Add(ctx, pref("dashboard", "recovered"))
	require.NoError(t, err)
	assert.True(t, added)

	reopened := New(ctx, backend)
	assert.Len(t, reopened.All(), 1)
}
