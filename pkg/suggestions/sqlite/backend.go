// Package sqlite implements the suggestion store backend on SQLite
package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/db"
	"github.com/jingkaihe/skillsmith/pkg/db/migrations"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Backend persists suggestions and metrics in a SQLite database
type Backend struct {
	dbPath string
	db     *sqlx.DB
}

// New opens the database at dbPath and migrates it
func New(ctx context.Context, dbPath string) (*Backend, error) {
	sqlDB, err := db.OpenAndMigrate(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize suggestion database")
	}
	return &Backend{dbPath: dbPath, db: sqlDB}, nil
}

// Close closes the database
func (b *Backend) Close() error {
	return b.db.Close()
}

// LoadSuggestions returns every suggestion in store order
func (b *Backend) LoadSuggestions(ctx context.Context) ([]skills.Suggestion, error) {
	var rows []dbSuggestion
	query := `SELECT id, position, skill_name, category, content, reason,
		session_id, user_id, org, created_at, applied
		FROM suggestions ORDER BY position`
	if err := b.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to load suggestions")
	}

	out := make([]skills.Suggestion, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSuggestion()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// SaveSuggestions replaces the suggestions table in one transaction
func (b *Backend) SaveSuggestions(ctx context.Context, suggestions []skills.Suggestion) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM suggestions"); err != nil {
		return errors.Wrap(err, "failed to clear suggestions")
	}

	query := `
		INSERT INTO suggestions (
			id, position, skill_name, category, content, reason,
			session_id, user_id, org, created_at, applied
		) VALUES (
			:id, :position, :skill_name, :category, :content, :reason,
			:session_id, :user_id, :org, :created_at, :applied
		)`
	for i, s := range suggestions {
		if _, err := tx.NamedExecContext(ctx, query, fromSuggestion(i, s)); err != nil {
			return errors.Wrapf(err, "failed to save suggestion %s", s.ID)
		}
	}

	return tx.Commit()
}

// LoadMetrics returns the metrics of every skill
func (b *Backend) LoadMetrics(ctx context.Context) (map[string]*skills.SkillMetrics, error) {
	var rows []dbSkillMetrics
	query := `SELECT skill_name, total_calls, successful_calls, failed_calls,
		total_exec_time_ms, last_used FROM skill_metrics`
	if err := b.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "failed to load skill metrics")
	}

	out := make(map[string]*skills.SkillMetrics, len(rows))
	for _, row := range rows {
		m, err := row.toMetrics()
		if err != nil {
			return nil, err
		}
		out[m.SkillName] = m
	}
	return out, nil
}

// SaveMetrics replaces the skill_metrics table in one transaction
func (b *Backend) SaveMetrics(ctx context.Context, metrics map[string]*skills.SkillMetrics) error {
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM skill_metrics"); err != nil {
		return errors.Wrap(err, "failed to clear skill metrics")
	}

	query := `
		INSERT INTO skill_metrics (
			skill_name, total_calls, successful_calls, failed_calls, total_exec_time_ms, last_used
		) VALUES (
			:skill_name, :total_calls, :successful_calls, :failed_calls, :total_exec_time_ms, :last_used
		)`
	for name, m := range metrics {
		row := fromMetrics(m)
		row.SkillName = name
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return errors.Wrapf(err, "failed to save metrics for %s", name)
		}
	}

	return tx.Commit()
}
