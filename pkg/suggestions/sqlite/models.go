package sqlite

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Timestamps are stored as RFC3339 text so they survive driver round trips
// without timezone guessing.
const timeLayout = time.RFC3339Nano

type dbSuggestion struct {
	ID        string `db:"id"`
	Position  int    `db:"position"`
	SkillName string `db:"skill_name"`
	Category  string `db:"category"`
	Content   string `db:"content"`
	Reason    string `db:"reason"`
	SessionID string `db:"session_id"`
	UserID    string `db:"user_id"`
	Org       string `db:"org"`
	CreatedAt string `db:"created_at"`
	Applied   bool   `db:"applied"`
}

type dbSkillMetrics struct {
	SkillName       string         `db:"skill_name"`
	TotalCalls      int64          `db:"total_calls"`
	SuccessfulCalls int64          `db:"successful_calls"`
	FailedCalls     int64          `db:"failed_calls"`
	TotalExecTimeMs int64          `db:"total_exec_time_ms"`
	LastUsed        sql.NullString `db:"last_used"`
}

func fromSuggestion(position int, s skills.Suggestion) dbSuggestion {
	return dbSuggestion{
		ID:        s.ID,
		Position:  position,
		SkillName: s.SkillName,
		Category:  string(s.Category),
		Content:   s.Content,
		Reason:    s.Reason,
		SessionID: s.SessionID,
		UserID:    s.UserID,
		Org:       s.Org,
		CreatedAt: s.CreatedAt.UTC().Format(timeLayout),
		Applied:   s.Applied,
	}
}

func (r dbSuggestion) toSuggestion() (skills.Suggestion, error) {
	createdAt, err := time.Parse(timeLayout, r.CreatedAt)
	if err != nil {
		return skills.Suggestion{}, errors.Wrapf(err, "invalid created_at for suggestion %s", r.ID)
	}
	return skills.Suggestion{
		ID:        r.ID,
		SkillName: r.SkillName,
		Category:  skills.Category(r.Category),
		Content:   r.Content,
		Reason:    r.Reason,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Org:       r.Org,
		CreatedAt: createdAt,
		Applied:   r.Applied,
	}, nil
}

func fromMetrics(m *skills.SkillMetrics) dbSkillMetrics {
	r := dbSkillMetrics{
		SkillName:       m.SkillName,
		TotalCalls:      m.TotalCalls,
		SuccessfulCalls: m.SuccessfulCalls,
		FailedCalls:     m.FailedCalls,
		TotalExecTimeMs: m.TotalExecTimeMs,
	}
	if m.LastUsed != nil {
		r.LastUsed = sql.NullString{String: m.LastUsed.UTC().Format(timeLayout), Valid: true}
	}
	return r
}

func (r dbSkillMetrics) toMetrics() (*skills.SkillMetrics, error) {
	m := &skills.SkillMetrics{
		SkillName:       r.SkillName,
		TotalCalls:      r.TotalCalls,
		SuccessfulCalls: r.SuccessfulCalls,
		FailedCalls:     r.FailedCalls,
		TotalExecTimeMs: r.TotalExecTimeMs,
	}
	if r.LastUsed.Valid {
		lastUsed, err := time.Parse(timeLayout, r.LastUsed.String)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid last_used for skill %s", r.SkillName)
		}
		m.LastUsed = &lastUsed
	}
	return m, nil
}
