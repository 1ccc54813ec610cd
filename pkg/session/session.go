// Package session tracks a conversation that used skills and, when it ends,
// asks a Generator to extract suggestions for those skills.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillsmith/pkg/llm"
	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/telemetry"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// MaxAnalysisMessages is the number of most recent messages sent for extraction.
const MaxAnalysisMessages = 200

// ErrEnded is returned when recording into a session that has already ended.
var ErrEnded = errors.New("session already ended")

// Role is the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SkillUsage records one invocation of a skill during the session.
type SkillUsage struct {
	SkillName  string    `json:"skill_name"`
	ExecTimeMs int64     `json:"exec_time_ms"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store is the part of the suggestion store a session writes to.
type Store interface {
	RecordUsage(ctx context.Context, skillName string, success bool, execTimeMs int64) error
	AddBatch(ctx context.Context, batch []skills.Suggestion) (int, error)
}

// Session accumulates messages and skill usages until End is called.
type Session struct {
	mu sync.Mutex

	id        string
	userID    string
	org       string
	store     Store
	generator llm.Generator
	now       func() time.Time

	messages []Message
	usages   []SkillUsage
	started  time.Time
	endedAt  time.Time
	ended    bool
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithUser stamps extracted suggestions with a user id.
func WithUser(userID string) Option {
	return func(s *Session) { s.userID = userID }
}

// WithOrg stamps extracted suggestions with an organization.
func WithOrg(org string) Option {
	return func(s *Session) { s.org = org }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New starts a session.
func New(store Store, generator llm.Generator, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		store:     store,
		generator: generator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now().UTC()
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// AddMessage appends a conversation message.
func (s *Session) AddMessage(role Role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return ErrEnded
	}
	s.messages = append(s.messages, Message{Role: role, Content: content, Timestamp: s.now().UTC()})
	return nil
}

// AddMessages appends several messages in order.
func (s *Session) AddMessages(messages []Message) error {
	for _, m := range messages {
		if err := s.AddMessage(m.Role, m.Content); err != nil {
			return err
		}
	}
	return nil
}

// TrackSkill records a skill invocation. The usage is also recorded in the
// store right away so metrics survive a session that is never ended.
func (s *Session) TrackSkill(ctx context.Context, skillName string, execTimeMs int64, success bool, errMsg string) error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrEnded
	}
	s.usages = append(s.usages, SkillUsage{
		SkillName:  skillName,
		ExecTimeMs: execTimeMs,
		Success:    success,
		Error:      errMsg,
		Timestamp:  s.now().UTC(),
	})
	s.mu.Unlock()

	return s.store.RecordUsage(ctx, skillName, success, execTimeMs)
}

// Messages returns a copy of the recorded messages.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Usages returns a copy of the recorded skill usages.
func (s *Session) Usages() []SkillUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SkillUsage(nil), s.usages...)
}

// Ended reports whether End has been called.
func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Duration is the time from start until end, or until now while running.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return s.endedAt.Sub(s.started)
	}
	return s.now().UTC().Sub(s.started)
}

// End closes the session and extracts suggestions from the conversation.
// Nothing is extracted when no skill was used or fewer than two messages
// were recorded, and a second End returns nothing. Provider and parse
// failures are logged and produce an empty batch; the returned error is
// only set when the extracted batch could not be stored.
func (s *Session) End(ctx context.Context) ([]skills.Suggestion, error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, nil
	}
	s.ended = true
	s.endedAt = s.now().UTC()
	messages := append([]Message(nil), s.messages...)
	usages := append([]SkillUsage(nil), s.usages...)
	s.mu.Unlock()

	if len(usages) == 0 || len(messages) < 2 {
		return nil, nil
	}

	ctx = logger.WithField(ctx, "session_id", s.id)

	var batch []skills.Suggestion
	err := telemetry.WithSpan(ctx, "session.extract", func(ctx context.Context) error {
		prompt := BuildPrompt(ctx, messages, usages)

		response, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("generator", s.generator.Name()).Error("suggestion extraction failed")
			return nil
		}

		batch = ParseResponse(ctx, response, Stamp{SessionID: s.id, UserID: s.userID, Org: s.org})
		telemetry.SetAttributes(ctx, attribute.Int("suggestions.extracted", len(batch)))
		if len(batch) == 0 {
			return nil
		}

		added, err := s.store.AddBatch(ctx, batch)
		logger.G(ctx).WithField("extracted", len(batch)).WithField("added", added).Info("session analyzed")
		return err
	}, attribute.String("session.id", s.id), attribute.Int("session.messages", len(messages)))

	return batch, err
}
