package optimizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillsmith/pkg/merge"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/suggestions"
	skilltypes "github.com/jingkaihe/skillsmith/pkg/types/skills"
)

const docxSkill = `---
name: docx
description: "Create Word documents. Use when the user asks for a report."
---

# Docx

Write documents.
`

type fixture struct {
	dir   string
	store *suggestions.Store
	opt   *Optimizer
}

func newFixture(t *testing.T, withDiscovery bool) *fixture {
	t.Helper()
	dir := t.TempDir()
	store := suggestions.New(context.Background(), suggestions.NewMemoryBackend())

	var discovery *skills.Discovery
	if withDiscovery {
		var err error
		discovery, err = skills.NewDiscovery(skills.WithSkillDirs(dir))
		require.NoError(t, err)
	}
	return &fixture{dir: dir, store: store, opt: New(store, discovery, dir)}
}

func (f *fixture) add(t *testing.T, skill string, category skilltypes.Category, content string) {
	t.Helper()
	added, err := f.store.Add(context.Background(), skilltypes.NewSuggestion(skill, category, content))
	require.NoError(t, err)
	require.True(t, added)
}

func (f *fixture) writeSkill(t *testing.T, dirName, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, dirName, skills.FileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApplyCreatesMissingSkill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.add(t, "new-skill", skilltypes.CategoryPreference, "Prefer tables")

	report, err := f.opt.Apply(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, report.Skills, 1)

	res := report.Skills[0]
	assert.Equal(t, OutcomeCreated, res.Outcome)
	assert.Equal(t, filepath.Join(f.dir, "new-skill", skills.FileName), res.Path)
	assert.Equal(t, merge.ActionCreated, res.Summary.Action)
	assert.Equal(t, 1, report.Changed())

	written, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, res.Content, string(written))
	assert.Contains(t, string(written), "## User Preferences")
	assert.Contains(t, string(written), "- Prefer tables")

	assert.Empty(t, f.store.Pending(skilltypes.Filter{}))
}

func TestApplyUpdatesDiscoveredSkill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	// directory name differs from the frontmatter name
	path := f.writeSkill(t, "word", docxSkill)
	f.add(t, "docx", skilltypes.CategoryCorrection, "Keep headings short")
	require.NoError(t, f.store.RecordUsage(ctx, "docx", true, 120))

	report, err := f.opt.Apply(ctx, "", false)
	require.NoError(t, err)
	require.Len(t, report.Skills, 1)
	assert.Equal(t, OutcomeUpdated, report.Skills[0].Outcome)
	assert.Equal(t, path, report.Skills[0].Path)
	assert.Equal(t, []string{"Learned Corrections"}, report.Skills[0].Summary.SectionsModified)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "## Learned Corrections\n\n- Keep headings short\n")
	assert.Contains(t, string(written), "| Total Calls | 1 |")
	assert.NoFileExists(t, filepath.Join(f.dir, "docx", skills.FileName))
}

func TestApplyDryRunMutatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	path := f.writeSkill(t, "docx", docxSkill)
	f.add(t, "docx", skilltypes.CategoryPreference, "Use bullet points")
	f.add(t, "fresh", skilltypes.CategoryImprovement, "Cache results")

	report, err := f.opt.Apply(ctx, "", true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	require.Len(t, report.Skills, 2)

	assert.Equal(t, OutcomeUpdated, report.Skills[0].Outcome)
	assert.Contains(t, report.Skills[0].Diff, "+## User Preferences")
	assert.Contains(t, report.Skills[0].Diff, "+- Use bullet points")

	assert.Equal(t, OutcomeCreated, report.Skills[1].Outcome)
	assert.Contains(t, report.Skills[1].Diff, "+## Improvements")

	unchanged, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, docxSkill, string(unchanged))
	assert.NoDirExists(t, filepath.Join(f.dir, "fresh"))
	assert.Len(t, f.store.Pending(skilltypes.Filter{}), 2)
}

func TestApplyPattern(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.add(t, "docx", skilltypes.CategoryPreference, "A")
	f.add(t, "dashboard", skilltypes.CategoryPreference, "B")
	f.add(t, "pdf", skilltypes.CategoryPreference, "C")

	report, err := f.opt.Apply(ctx, "d*", false)
	require.NoError(t, err)
	require.Len(t, report.Skills, 2)
	assert.Equal(t, "docx", report.Skills[0].SkillName)
	assert.Equal(t, "dashboard", report.Skills[1].SkillName)

	pending := f.store.Pending(skilltypes.Filter{})
	require.Len(t, pending, 1)
	assert.Equal(t, "pdf", pending[0].SkillName)
}

func TestApplyNothingPending(t *testing.T) {
	f := newFixture(t, true)
	report, err := f.opt.Apply(context.Background(), "", false)
	require.NoError(t, err)
	assert.Empty(t, report.Skills)
	assert.Equal(t, 0, report.Changed())
}

func TestApplyCollectsFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	// a directory where the skill file should be cannot be read
	require.NoError(t, os.MkdirAll(filepath.Join(f.dir, "broken", skills.FileName), 0o755))
	f.add(t, "broken", skilltypes.CategoryPreference, "A")
	f.add(t, "ok", skilltypes.CategoryPreference, "B")

	report, err := f.opt.Apply(ctx, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill broken")
	require.Len(t, report.Skills, 2)
	assert.Equal(t, OutcomeFailed, report.Skills[0].Outcome)
	assert.Equal(t, OutcomeCreated, report.Skills[1].Outcome)

	pending := f.store.Pending(skilltypes.Filter{})
	require.Len(t, pending, 1)
	assert.Equal(t, "broken", pending[0].SkillName)
}

func TestApplyRejectsSkillNamesOutsideSkillsDir(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	skillsDir := filepath.Join(root, "skills")

	backend := suggestions.NewMemoryBackend()
	require.NoError(t, backend.SaveSuggestions(ctx, []skilltypes.Suggestion{
		skilltypes.NewSuggestion("../escaped", skilltypes.CategoryImprovement, "x"),
		skilltypes.NewSuggestion("ok", skilltypes.CategoryImprovement, "y"),
	}))
	store := suggestions.New(ctx, backend)

	report, err := New(store, nil, skillsDir).Apply(ctx, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skill ../escaped")
	require.Len(t, report.Skills, 2)
	assert.Equal(t, OutcomeFailed, report.Skills[0].Outcome)
	assert.Empty(t, report.Skills[0].Path)
	assert.Equal(t, OutcomeCreated, report.Skills[1].Outcome)

	assert.NoFileExists(t, filepath.Join(root, "escaped", skills.FileName))
	assert.FileExists(t, filepath.Join(skillsDir, "ok", skills.FileName))

	pending := store.Pending(skilltypes.Filter{})
	require.Len(t, pending, 1)
	assert.Equal(t, "../escaped", pending[0].SkillName)
}

func TestApplyInvalidPattern(t *testing.T) {
	f := newFixture(t, false)
	f.add(t, "docx", skilltypes.CategoryPreference, "A")
	_, err := f.opt.Apply(context.Background(), "[", false)
	require.Error(t, err)
}
