// Package optimizer applies pending suggestions to skill documents on disk.
package optimizer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/merge"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/suggestions"
	"github.com/jingkaihe/skillsmith/pkg/telemetry"
	skilltypes "github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Outcome describes what happened to one skill during Apply.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// SkillResult is the per-skill result of Apply.
type SkillResult struct {
	SkillName   string                  `json:"skill_name"`
	Path        string                  `json:"path"`
	Outcome     Outcome                 `json:"outcome"`
	Suggestions []skilltypes.Suggestion `json:"suggestions"`
	Summary     *merge.ChangeSummary    `json:"summary,omitempty"`
	Diff        string                  `json:"diff,omitempty"`
	Content     string                  `json:"-"`
	Err         error                   `json:"-"`
}

// Report is the result of one Apply run.
type Report struct {
	DryRun bool          `json:"dry_run"`
	Skills []SkillResult `json:"skills"`
}

// Changed counts the skills that were (or would be) written.
func (r *Report) Changed() int {
	n := 0
	for _, s := range r.Skills {
		if s.Outcome == OutcomeCreated || s.Outcome == OutcomeUpdated {
			n++
		}
	}
	return n
}

// Optimizer ties the suggestion store, the skill directory and the merge
// engine together.
type Optimizer struct {
	store     *suggestions.Store
	discovery *skills.Discovery
	engine    *merge.Engine
	skillsDir string
}

// New returns an Optimizer writing new skills under skillsDir. Existing skills
// are located through discovery, which may be nil.
func New(store *suggestions.Store, discovery *skills.Discovery, skillsDir string) *Optimizer {
	return &Optimizer{
		store:     store,
		discovery: discovery,
		engine:    merge.NewEngine(),
		skillsDir: skillsDir,
	}
}

// Store returns the underlying suggestion store.
func (o *Optimizer) Store() *suggestions.Store { return o.store }

// SkillsDir returns the directory new skills are created in.
func (o *Optimizer) SkillsDir() string { return o.skillsDir }

// Apply merges the pending suggestions of every skill matching skillPattern
// (all skills when empty) into its SKILL.md. Each written skill has exactly
// the merged suggestions marked applied. With dryRun nothing is written or
// marked and each result carries a unified diff instead. Failures are
// collected per skill; other skills still proceed.
func (o *Optimizer) Apply(ctx context.Context, skillPattern string, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun}

	err := telemetry.WithSpan(ctx, "optimizer.apply", func(ctx context.Context) error {
		batches, err := o.selectBatches(skillPattern)
		if err != nil {
			return err
		}
		if len(batches) == 0 {
			return nil
		}

		paths, err := o.skillPaths()
		if err != nil {
			logger.G(ctx).WithError(err).Warn("skill discovery failed, using default skill paths")
		}

		var result *multierror.Error
		for _, batch := range batches {
			path, ok := paths[batch.SkillName]
			if !ok && skilltypes.ValidateSkillName(batch.SkillName) == nil {
				path = skills.PathFor(o.skillsDir, batch.SkillName)
			}

			res := o.applySkill(logger.WithSkill(ctx, batch.SkillName), batch, path, dryRun)
			if res.Err != nil {
				result = multierror.Append(result, errors.Wrapf(res.Err, "skill %s", batch.SkillName))
			}
			report.Skills = append(report.Skills, res)
		}

		telemetry.SetAttributes(ctx,
			attribute.Int("optimizer.skills", len(report.Skills)),
			attribute.Int("optimizer.changed", report.Changed()),
		)
		return result.ErrorOrNil()
	}, attribute.Bool("optimizer.dry_run", dryRun), attribute.String("optimizer.pattern", skillPattern))

	return report, err
}

func (o *Optimizer) selectBatches(pattern string) ([]suggestions.SkillBatch, error) {
	batches := o.store.PendingBySkill(skilltypes.Filter{})
	if pattern == "" {
		return batches, nil
	}

	g, err := skills.CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	var selected []suggestions.SkillBatch
	for _, b := range batches {
		if g.Match(b.SkillName) {
			selected = append(selected, b)
		}
	}
	return selected, nil
}

func (o *Optimizer) skillPaths() (map[string]string, error) {
	paths := map[string]string{}
	if o.discovery == nil {
		return paths, nil
	}
	found, err := o.discovery.DiscoverSkills()
	if err != nil {
		return paths, err
	}
	for name, skill := range found {
		paths[name] = skill.Path
	}
	return paths, nil
}

func (o *Optimizer) applySkill(ctx context.Context, batch suggestions.SkillBatch, path string, dryRun bool) SkillResult {
	res := SkillResult{
		SkillName:   batch.SkillName,
		Path:        path,
		Suggestions: batch.Suggestions,
	}

	if err := skilltypes.ValidateSkillName(batch.SkillName); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		res.Outcome = OutcomeFailed
		res.Err = errors.Wrap(err, "failed to read skill file")
		return res
	}

	merged, err := o.engine.Apply(string(existing), batch.SkillName, batch.Suggestions, o.store.Metrics(batch.SkillName))
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	if !merged.Changed() {
		res.Outcome = OutcomeUnchanged
		logger.G(ctx).Debug("merge produced no change")
		return res
	}

	res.Summary = merged.Summary
	res.Content = merged.Text
	res.Outcome = OutcomeUpdated
	if merged.Summary.Action == merge.ActionCreated {
		res.Outcome = OutcomeCreated
	}

	if dryRun {
		res.Diff = udiff.Unified(path, path, string(existing), merged.Text)
		return res
	}

	if err := writeSkill(path, merged.Text); err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	marked, err := o.store.MarkAppliedBatch(ctx, batch.Suggestions)
	if err != nil {
		res.Err = errors.Wrap(err, "skill written but suggestions not marked applied")
		return res
	}

	logger.G(ctx).WithField("action", merged.Summary.Action).
		WithField("sections", merged.Summary.SectionsModified).
		WithField("marked", marked).
		Info("applied suggestions")
	return res
}

func writeSkill(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create skill directory")
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, "failed to write skill file")
	}
	return nil
}
