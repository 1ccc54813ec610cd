package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/jingkaihe/skillsmith/pkg/logger"
)

// ExtractedSuggestion is one entry of the extraction response.
type ExtractedSuggestion struct {
	SkillName string `json:"skill_name" jsonschema:"description=Name of the skill the feedback applies to"`
	Category  string `json:"category" jsonschema:"enum=correction,enum=preference,enum=trigger,enum=improvement"`
	Content   string `json:"content" jsonschema:"description=The specific suggestion"`
	Reason    string `json:"reason,omitempty" jsonschema:"description=Why this suggestion was made, based on the conversation"`
}

// ExtractionResponse is the JSON document the generator must return.
type ExtractionResponse struct {
	Suggestions []ExtractedSuggestion `json:"suggestions"`
}

// ResponseSchema returns the JSON schema of ExtractionResponse.
func ResponseSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&ExtractionResponse{})
}

const promptTemplate = `Analyze this conversation between a user and an AI assistant that uses skills.

SKILLS USED: %s

SKILL PERFORMANCE:
%s

CONVERSATION:
%s

---

Analyze the conversation and extract any feedback about the skills used. Look for:

1. CORRECTIONS: User pointing out mistakes or asking for changes
   - "Actually, I wanted..."
   - "No, that's not right..."
   - "Can you change..."
   - Any indication the skill output wasn't what user wanted

2. PREFERENCES: User stating preferences for future use
   - "I prefer..."
   - "Always use..."
   - "Next time..."
   - Style/format preferences

3. NEW TRIGGERS: Phrases that should trigger a skill
   - "When I say X, I mean..."
   - Alternative ways to request the skill

4. IMPROVEMENTS: General improvements for the skill
   - Performance issues
   - Missing features
   - Better defaults

Return your analysis as JSON (only valid JSON, no other text) matching this schema:
%s

Example:
{"suggestions": [{"skill_name": "skill name", "category": "correction|preference|trigger|improvement", "content": "the specific suggestion", "reason": "why this suggestion (based on conversation)"}]}

If no suggestions found, return: {"suggestions": []}

Important:
- Only include actionable, specific suggestions
- Each suggestion should be clear enough to update the SKILL.md file
- Focus on the skills that were actually used
- Be concise but complete`

// BuildPrompt renders the extraction prompt for a conversation.
func BuildPrompt(ctx context.Context, messages []Message, usages []SkillUsage) string {
	schema, err := json.MarshalIndent(ResponseSchema(), "", "  ")
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to render response schema")
		schema = []byte("{}")
	}

	return fmt.Sprintf(promptTemplate,
		strings.Join(skillNames(usages), ", "),
		performance(usages),
		Transcript(ctx, messages),
		schema,
	)
}

// Transcript renders messages as "ROLE: content" lines, keeping only the
// most recent MaxAnalysisMessages behind a truncation marker.
func Transcript(ctx context.Context, messages []Message) string {
	var sb strings.Builder

	if dropped := len(messages) - MaxAnalysisMessages; dropped > 0 {
		logger.G(ctx).WithField("messages", len(messages)).
			WithField("kept", MaxAnalysisMessages).
			Info("truncated conversation for analysis")
		fmt.Fprintf(&sb, "[...truncated %d earlier messages...]\n", dropped)
		messages = messages[dropped:]
	}

	for i, m := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(strings.ToUpper(string(m.Role)))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
	}
	return sb.String()
}

// skillNames lists the distinct skills in first-use order.
func skillNames(usages []SkillUsage) []string {
	seen := make(map[string]bool, len(usages))
	var names []string
	for _, u := range usages {
		if !seen[u.SkillName] {
			seen[u.SkillName] = true
			names = append(names, u.SkillName)
		}
	}
	return names
}

type perf struct {
	success, fail int
	totalMs       int64
}

func performance(usages []SkillUsage) string {
	stats := make(map[string]*perf)
	for _, u := range usages {
		p, ok := stats[u.SkillName]
		if !ok {
			p = &perf{}
			stats[u.SkillName] = p
		}
		if u.Success {
			p.success++
		} else {
			p.fail++
		}
		p.totalMs += u.ExecTimeMs
	}

	names := skillNames(usages)
	lines := make([]string, 0, len(names))
	for _, name := range names {
		p := stats[name]
		avg := p.totalMs / int64(p.success+p.fail)
		lines = append(lines, fmt.Sprintf("- %s: %d success, %d fail, avg %dms", name, p.success, p.fail, avg))
	}
	return strings.Join(lines, "\n")
}
