package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"suggestions": []}`, `{"suggestions": []}`},
		{"json fence", "Here you go:\n```json\n{\"a\": 1}\n```\nThanks", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 2}\n```", `{"a": 2}`},
		{"unterminated fence", "```json\n{\"a\": 3}", `{"a": 3}`},
		{"surrounding prose", `Sure! {"a": {"b": 4}} hope it helps`, `{"a": {"b": 4}}`},
		{"no json", "nothing here", "nothing here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractJSON(tt.input))
		})
	}
}

func TestParseResponse(t *testing.T) {
	ctx := context.Background()
	stamp := Stamp{SessionID: "s1", UserID: "u1", Org: "o1"}

	response := `{"suggestions": [
		{"skill_name": "pdf", "category": "trigger", "content": "make a pdf"},
		{"category": "preference", "content": "Use A4"},
		{"skill_name": "pdf", "content": "Faster rendering"},
		{"skill_name": "pdf", "category": "wishlist", "content": "dropped"},
		{"skill_name": "pdf", "category": "correction", "content": "   "},
		{"skill_name": "../escaped", "category": "improvement", "content": "dropped"}
	]}`

	batch := ParseResponse(ctx, response, stamp)
	require.Len(t, batch, 3)

	assert.Equal(t, skills.CategoryTrigger, batch[0].Category)
	assert.Equal(t, "make a pdf", batch[0].Content)

	assert.Equal(t, UnknownSkill, batch[1].SkillName)
	assert.Equal(t, skills.CategoryPreference, batch[1].Category)

	assert.Equal(t, skills.CategoryImprovement, batch[2].Category)

	for _, s := range batch {
		assert.Equal(t, "s1", s.SessionID)
		assert.Equal(t, "u1", s.UserID)
		assert.Equal(t, "o1", s.Org)
		assert.False(t, s.Applied)
	}
}

func TestParseResponseInvalid(t *testing.T) {
	assert.Empty(t, ParseResponse(context.Background(), "not json at all", Stamp{}))
	assert.Empty(t, ParseResponse(context.Background(), `{"suggestions": "nope"}`, Stamp{}))
	assert.Empty(t, ParseResponse(context.Background(), `{"suggestions": []}`, Stamp{}))
}

func TestParseTranscript(t *testing.T) {
	text := `preamble that is ignored
USER: Create a document
about cats
Assistant: Done!
user:   Actually use bullets

ASSISTANT:Updated`

	messages, err := ParseTranscript(text)
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, "Create a document\nabout cats", messages[0].Content)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.Equal(t, "Done!", messages[1].Content)
	assert.Equal(t, "Actually use bullets\n", messages[2].Content)
	assert.Equal(t, "Updated", messages[3].Content)
}

func TestParseTranscriptEmpty(t *testing.T) {
	messages, err := ParseTranscript("no roles here\nat all")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestResponseSchema(t *testing.T) {
	schema := ResponseSchema()
	require.NotNil(t, schema)
	prop, ok := schema.Properties.Get("suggestions")
	require.True(t, ok)
	assert.Equal(t, "array", prop.Type)
}
