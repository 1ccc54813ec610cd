// Package skills defines the value types shared by the suggestion store,
// the merge engine and the CLI: categorized suggestions, per-skill usage
// metrics and the filter used to select pending suggestions.
package skills

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Category is the closed set of suggestion kinds
type Category string

const (
	// CategoryCorrection is a mistake the skill should stop making
	CategoryCorrection Category = "correction"
	// CategoryPreference is a user style or format preference
	CategoryPreference Category = "preference"
	// CategoryTrigger is a phrase that should invoke the skill
	CategoryTrigger Category = "trigger"
	// CategoryImprovement is a general improvement to the skill
	CategoryImprovement Category = "improvement"
)

// Categories lists every known category in canonical order
var Categories = []Category{
	CategoryCorrection,
	CategoryPreference,
	CategoryTrigger,
	CategoryImprovement,
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts a user supplied string into a Category
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		names := make([]string, 0, len(Categories))
		for _, known := range Categories {
			names = append(names, string(known))
		}
		return "", errors.Errorf("unknown category %q, must be one of: %s", s, strings.Join(names, ", "))
	}
	return c, nil
}

// Suggestion is a categorized recommendation for updating a skill document.
// Only Applied changes after creation.
type Suggestion struct {
	ID        string    `json:"id,omitempty"`
	SkillName string    `json:"skill_name"`
	Category  Category  `json:"category"`
	Content   string    `json:"content"`
	Reason    string    `json:"reason,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Org       string    `json:"org,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Applied   bool      `json:"applied"`
}

// NewSuggestion creates a pending suggestion with a fresh id and creation time
func NewSuggestion(skillName string, category Category, content string) Suggestion {
	return Suggestion{
		ID:        uuid.NewString(),
		SkillName: skillName,
		Category:  category,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// ValidateSkillName rejects names that cannot be used as a single directory
// under the skills root: empty names, "." and "..", and anything holding a
// path separator.
func ValidateSkillName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return errors.New("skill name is empty")
	case trimmed == "." || trimmed == "..":
		return errors.Errorf("invalid skill name %q", name)
	case strings.ContainsAny(name, `/\`):
		return errors.Errorf("skill name %q must not contain path separators", name)
	}
	return nil
}

// SameAs reports whether two suggestions share the dedup identity
// (skill name, category, exact content)
func (s Suggestion) SameAs(other Suggestion) bool {
	return s.SkillName == other.SkillName &&
		s.Category == other.Category &&
		s.Content == other.Content
}

// Filter selects pending suggestions. Empty fields do not filter.
type Filter struct {
	SkillName string
	UserID    string
	Org       string
}

// Matches reports whether s satisfies every non-empty field of the filter
func (f Filter) Matches(s Suggestion) bool {
	if f.SkillName != "" && s.SkillName != f.SkillName {
		return false
	}
	if f.UserID != "" && s.UserID != f.UserID {
		return false
	}
	if f.Org != "" && s.Org != f.Org {
		return false
	}
	return true
}

// SkillMetrics tracks usage counters for a single skill
type SkillMetrics struct {
	SkillName       string     `json:"skill_name"`
	TotalCalls      int64      `json:"total_calls"`
	SuccessfulCalls int64      `json:"successful_calls"`
	FailedCalls     int64      `json:"failed_calls"`
	TotalExecTimeMs int64      `json:"total_exec_time_ms"`
	LastUsed        *time.Time `json:"last_used"`
}

// NewSkillMetrics returns zeroed metrics for a skill
func NewSkillMetrics(skillName string) *SkillMetrics {
	return &SkillMetrics{SkillName: skillName}
}

// SuccessRate is successful/total, 0 when the skill was never called
func (m SkillMetrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.SuccessfulCalls) / float64(m.TotalCalls)
}

// AvgExecTimeMs is total exec time/total, 0 when the skill was never called
func (m SkillMetrics) AvgExecTimeMs() float64 {
	if m.TotalCalls == 0 {
		return 0
	}
	return float64(m.TotalExecTimeMs) / float64(m.TotalCalls)
}

// Record counts one invocation and stamps LastUsed with now
func (m *SkillMetrics) Record(success bool, execTimeMs int64, now time.Time) {
	m.TotalCalls++
	m.TotalExecTimeMs += execTimeMs
	if success {
		m.SuccessfulCalls++
	} else {
		m.FailedCalls++
	}
	ts := now.UTC()
	m.LastUsed = &ts
}
