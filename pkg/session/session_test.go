package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillsmith/pkg/llm"
	"github.com/jingkaihe/skillsmith/pkg/suggestions"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

type recordingGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.response, g.err
}

func (g *recordingGenerator) Name() string { return "fake/model" }

func newStore(t *testing.T) *suggestions.Store {
	t.Helper()
	return suggestions.New(context.Background(), suggestions.NewMemoryBackend())
}

const twoSuggestions = "```json\n" + `{"suggestions": [
  {"skill_name": "docx", "category": "preference", "content": "Use bullet points", "reason": "user asked twice"},
  {"skill_name": "docx", "category": "correction", "content": "Keep headings short"}
]}` + "\n```"

func converse(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.AddMessage(RoleUser, "Create a document"))
	require.NoError(t, s.TrackSkill(ctx, "docx", 1500, true, ""))
	require.NoError(t, s.AddMessage(RoleAssistant, "Done!"))
	require.NoError(t, s.AddMessage(RoleUser, "Actually use bullets"))
}

func TestEndExtractsSuggestions(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	gen := &recordingGenerator{response: twoSuggestions}

	s := New(store, gen, WithID("sess-1"), WithUser("alice"), WithOrg("acme"))
	converse(t, s)

	batch, err := s.End(ctx)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, "docx", batch[0].SkillName)
	assert.Equal(t, skills.CategoryPreference, batch[0].Category)
	assert.Equal(t, "Use bullet points", batch[0].Content)
	assert.Equal(t, "user asked twice", batch[0].Reason)
	for _, sg := range batch {
		assert.Equal(t, "sess-1", sg.SessionID)
		assert.Equal(t, "alice", sg.UserID)
		assert.Equal(t, "acme", sg.Org)
		assert.NotEmpty(t, sg.ID)
	}

	assert.Len(t, store.Pending(skills.Filter{SkillName: "docx"}), 2)
	assert.Equal(t, int64(1), store.Metrics("docx").TotalCalls)

	require.Len(t, gen.prompts, 1)
	prompt := gen.prompts[0]
	assert.Contains(t, prompt, "SKILLS USED: docx")
	assert.Contains(t, prompt, "- docx: 1 success, 0 fail, avg 1500ms")
	assert.Contains(t, prompt, "USER: Create a document\nASSISTANT: Done!\nUSER: Actually use bullets")
	assert.Contains(t, prompt, `"suggestions"`)
	assert.True(t, s.Ended())
}

func TestEndTwiceReturnsNothing(t *testing.T) {
	ctx := context.Background()
	gen := &recordingGenerator{response: twoSuggestions}
	s := New(newStore(t), gen)
	converse(t, s)

	first, err := s.End(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := s.End(ctx)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Len(t, gen.prompts, 1)
}

func TestEndWithoutAnalysis(t *testing.T) {
	ctx := context.Background()

	t.Run("no skill used", func(t *testing.T) {
		gen := &recordingGenerator{response: twoSuggestions}
		s := New(newStore(t), gen)
		require.NoError(t, s.AddMessage(RoleUser, "hi"))
		require.NoError(t, s.AddMessage(RoleAssistant, "hello"))

		batch, err := s.End(ctx)
		require.NoError(t, err)
		assert.Empty(t, batch)
		assert.Empty(t, gen.prompts)
	})

	t.Run("single message", func(t *testing.T) {
		gen := &recordingGenerator{response: twoSuggestions}
		store := newStore(t)
		s := New(store, gen)
		require.NoError(t, s.AddMessage(RoleUser, "hi"))
		require.NoError(t, s.TrackSkill(ctx, "docx", 10, false, "boom"))

		batch, err := s.End(ctx)
		require.NoError(t, err)
		assert.Empty(t, batch)
		assert.Empty(t, gen.prompts)
		assert.Equal(t, int64(1), store.Metrics("docx").FailedCalls)
	})
}

func TestEndProviderFailure(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := New(store, &recordingGenerator{err: errors.New("503 service unavailable")})
	converse(t, s)

	batch, err := s.End(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Empty(t, store.All())
}

func TestEndUnparseableResponse(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := New(store, &recordingGenerator{response: "I could not find anything useful."})
	converse(t, s)

	batch, err := s.End(ctx)
	require.NoError(t, err)
	assert.Empty(t, batch)
	assert.Empty(t, store.All())
}

func TestAddAfterEnd(t *testing.T) {
	ctx := context.Background()
	s := New(newStore(t), llm.GeneratorFunc(func(context.Context, string) (string, error) {
		return `{"suggestions": []}`, nil
	}))
	_, err := s.End(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, s.AddMessage(RoleUser, "late"), ErrEnded)
	assert.ErrorIs(t, s.TrackSkill(ctx, "docx", 1, true, ""), ErrEnded)
}

func TestDuration(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	s := New(newStore(t), &recordingGenerator{}, WithClock(clock))
	now = now.Add(90 * time.Second)
	assert.Equal(t, 90*time.Second, s.Duration())

	_, err := s.End(context.Background())
	require.NoError(t, err)
	now = now.Add(time.Hour)
	assert.Equal(t, 90*time.Second, s.Duration())
}

func TestTranscriptTruncation(t *testing.T) {
	messages := make([]Message, 0, 205)
	for i := 0; i < 205; i++ {
		messages = append(messages, Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	out := Transcript(context.Background(), messages)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, MaxAnalysisMessages+1)
	assert.Equal(t, "[...truncated 5 earlier messages...]", lines[0])
	assert.Equal(t, "USER: m5", lines[1])
	assert.Equal(t, "USER: m204", lines[len(lines)-1])

	short := Transcript(context.Background(), messages[:2])
	assert.Equal(t, "USER: m0\nUSER: m1", short)
}

func TestPerformanceSummary(t *testing.T) {
	usages := []SkillUsage{
		{SkillName: "pdf", ExecTimeMs: 100, Success: true},
		{SkillName: "docx", ExecTimeMs: 10, Success: false},
		{SkillName: "pdf", ExecTimeMs: 201, Success: false},
	}
	assert.Equal(t, []string{"pdf", "docx"}, skillNames(usages))
	assert.Equal(t, "- pdf: 1 success, 1 fail, avg 150ms\n- docx: 0 success, 1 fail, avg 10ms", performance(usages))
}
