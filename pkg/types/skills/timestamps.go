package skills

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Records written by earlier tooling carry naive ISO-8601 timestamps
// without a zone; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an RFC3339 or zone-less ISO-8601 timestamp
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON accepts zone-less created_at values
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	type alias Suggestion
	aux := struct {
		*alias
		CreatedAt string `json:"created_at"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CreatedAt == "" {
		return nil
	}
	t, err := ParseTimestamp(aux.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "invalid created_at")
	}
	s.CreatedAt = t
	return nil
}

// UnmarshalJSON accepts zone-less last_used values
func (m *SkillMetrics) UnmarshalJSON(data []byte) error {
	type alias SkillMetrics
	aux := struct {
		*alias
		LastUsed *string `json:"last_used"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.LastUsed == nil || *aux.LastUsed == "" {
		m.LastUsed = nil
		return nil
	}
	t, err := ParseTimestamp(*aux.LastUsed)
	if err != nil {
		return errors.Wrap(err, "invalid last_used")
	}
	m.LastUsed = &t
	return nil
}
