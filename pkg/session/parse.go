package session

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// UnknownSkill is used for extracted suggestions that name no skill.
const UnknownSkill = "unknown"

// Stamp carries the attribution copied onto every extracted suggestion.
type Stamp struct {
	SessionID string
	UserID    string
	Org       string
}

// ParseResponse decodes a generator response into suggestions. The JSON may
// be wrapped in a code fence or surrounded by prose. Entries with an unknown
// category or empty content are dropped; an undecodable response yields nil.
func ParseResponse(ctx context.Context, response string, stamp Stamp) []skills.Suggestion {
	var decoded ExtractionResponse
	if err := json.Unmarshal([]byte(extractJSON(response)), &decoded); err != nil {
		logger.G(ctx).WithError(err).Warn("could not parse extraction response")
		return nil
	}

	var out []skills.Suggestion
	for _, e := range decoded.Suggestions {
		content := strings.TrimSpace(e.Content)
		if content == "" {
			continue
		}

		rawCategory := strings.TrimSpace(e.Category)
		if rawCategory == "" {
			rawCategory = string(skills.CategoryImprovement)
		}
		category, err := skills.ParseCategory(rawCategory)
		if err != nil {
			logger.G(ctx).WithField("category", e.Category).Debug("dropping suggestion with unknown category")
			continue
		}

		skillName := strings.TrimSpace(e.SkillName)
		if skillName == "" {
			skillName = UnknownSkill
		}
		if err := skills.ValidateSkillName(skillName); err != nil {
			logger.G(ctx).WithField("skill", e.SkillName).Debug("dropping suggestion with unusable skill name")
			continue
		}

		s := skills.NewSuggestion(skillName, category, content)
		s.Reason = strings.TrimSpace(e.Reason)
		s.SessionID = stamp.SessionID
		s.UserID = stamp.UserID
		s.Org = stamp.Org
		out = append(out, s)
	}
	return out
}

// extractJSON pulls the JSON object out of a fenced or chatty response.
func extractJSON(response string) string {
	text := strings.TrimSpace(response)

	for _, fence := range []string{"```json", "```"} {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		rest := text[start+len(fence):]
		if end := strings.Index(rest, "```"); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}

	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// ParseTranscript splits a "USER:" / "ASSISTANT:" prefixed transcript into
// messages. Prefixes are case-insensitive; following lines continue the
// current message and text before the first prefix is ignored.
func ParseTranscript(text string) ([]Message, error) {
	var (
		messages []Message
		role     Role
		lines    []string
	)

	flush := func() {
		if role != "" && len(lines) > 0 {
			messages = append(messages, Message{Role: role, Content: strings.Join(lines, "\n")})
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if rest, ok := cutPrefixFold(line, "USER:"); ok {
			flush()
			role = RoleUser
			lines = []string{strings.TrimSpace(rest)}
		} else if rest, ok := cutPrefixFold(line, "ASSISTANT:"); ok {
			flush()
			role = RoleAssistant
			lines = []string{strings.TrimSpace(rest)}
		} else if role != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read transcript")
	}
	flush()

	return messages, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
