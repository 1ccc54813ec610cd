package verify

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillsmith/pkg/skills"
)

const validSkill = `---
name: dashboard
description: "Builds KPI dashboards from CSV exports. Triggers: sales report, kpi"
---

# Dashboard Skill

## Instructions

- Load the CSV export and detect numeric columns
- Render one chart per KPI with labelled axes
`

func codes(r *Result) []Code {
	out := make([]Code, 0, len(r.Issues))
	for _, issue := range r.Issues {
		out = append(out, issue.Code)
	}
	return out
}

func issueFor(t *testing.T, r *Result, code Code) Issue {
	t.Helper()
	for _, issue := range r.Issues {
		if issue.Code == code {
			return issue
		}
	}
	require.Failf(t, "issue not found", "no %s in %v", code, codes(r))
	return Issue{}
}

func TestVerifyValidDocument(t *testing.T) {
	result := New().Verify("dashboard", validSkill)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
	assert.True(t, result.Passes(true))
}

func TestVerifyMissingDescription(t *testing.T) {
	text := "---\nname: dashboard\n---\n\n## Instructions\n\nRender one chart per KPI with labelled axes and a legend.\n"
	result := New().Verify("dashboard", text)

	require.Equal(t, []Code{CodeMissingField}, codes(result))
	issue := result.Issues[0]
	assert.Equal(t, SeverityError, issue.Severity)
	assert.Equal(t, "Missing required field: 'description'", issue.Message)
	assert.Equal(t, 2, issue.Line)
	assert.False(t, result.Valid)
}

func TestVerifyEmptyMappingMissesBothFields(t *testing.T) {
	text := "---\n{}\n---\n\n## Instructions\n\nRender one chart per KPI with labelled axes and a legend.\n"
	result := New().Verify("x", text)

	assert.Equal(t, []Code{CodeMissingField, CodeMissingField}, codes(result))
}

func TestVerifyPathTraversal(t *testing.T) {
	for _, position := range []string{"start", "middle", "metadata"} {
		t.Run(position, func(t *testing.T) {
			text := validSkill
			switch position {
			case "start":
				text = strings.Replace(text, "# Dashboard Skill", "# Dashboard Skill ../../etc/passwd", 1)
			case "middle":
				text += "\nRead ../../etc/passwd for users.\n"
			case "metadata":
				text = strings.Replace(text, "name: dashboard", "name: dashboard\nsource: ../../etc/passwd", 1)
			}

			result := New().Verify("dashboard", text)
			issue := issueFor(t, result, CodePathTraversal)
			assert.Equal(t, SeverityError, issue.Severity)
			assert.Zero(t, issue.Line)
			assert.False(t, result.Valid)
		})
	}

	t.Run("windows separator", func(t *testing.T) {
		result := New().Verify("dashboard", validSkill+`See ..\secrets`+"\n")
		assert.True(t, result.Has(CodePathTraversal))
	})
}

func TestVerifySecrets(t *testing.T) {
	text := validSkill + "\n" +
		`api_key = "abcdefghijklmnopqrstuvwxyz"` + "\n" +
		`password: "hunter22hunter"` + "\n"

	result := New().Verify("dashboard", text)

	var secrets []Issue
	for _, issue := range result.Issues {
		if issue.Code == CodePossibleSecret {
			secrets = append(secrets, issue)
		}
	}
	require.Len(t, secrets, 2)
	assert.Equal(t, "Possible hardcoded API key", secrets[0].Message)
	assert.Equal(t, "Possible hardcoded password", secrets[1].Message)
	assert.False(t, result.Valid)

	short := New().Verify("dashboard", validSkill+`api_key: "short"`+"\n")
	assert.False(t, short.Has(CodePossibleSecret))
}

func TestVerifyShortDocumentScenario(t *testing.T) {
	text := "---\nname: dash\ndescription: \"short\"\n---\nTen chars.\n"
	result := New().Verify("dash", text)

	assert.Equal(t, []Code{CodeDescTooShort, CodeBodyTooShort, CodeNoSections}, codes(result))
	for _, issue := range result.Issues {
		assert.Equal(t, SeverityWarning, issue.Severity)
	}

	// Warnings alone keep the document valid; strict mode rejects it
	assert.True(t, result.Valid)
	assert.False(t, result.Passes(true))
	assert.True(t, result.Passes(false))

	assert.Equal(t, 5, issueFor(t, result, CodeBodyTooShort).Line)
	assert.Equal(t, "Description is too short (<10 chars)", issueFor(t, result, CodeDescTooShort).Message)
}

func TestVerifyDescriptionRules(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    []Code
		severity    Severity
	}{
		{
			name:        "too long",
			description: strings.Repeat("a", 201),
			expected:    []Code{CodeDescTooLong},
			severity:    SeverityWarning,
		},
		{
			name:        "exactly max",
			description: strings.Repeat("a", 200),
			expected:    []Code{},
		},
		{
			name:        "counts characters not bytes",
			description: strings.Repeat("æ", 150),
			expected:    []Code{},
		},
		{
			name:        "vague",
			description: "Use when needed for reports",
			expected:    []Code{CodeDescVague},
			severity:    SeverityInfo,
		},
		{
			name:        "long description with when",
			description: "Use when building quarterly KPI dashboards from CSV sales exports",
			expected:    []Code{},
		},
	}

	body := "\n## Instructions\n\nRender one chart per KPI with labelled axes and a legend.\n"
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "---\nname: x\ndescription: \"" + tt.description + "\"\n---\n" + body
			result := New().Verify("x", text)
			assert.Equal(t, tt.expected, codes(result))
			for _, issue := range result.Issues {
				assert.Equal(t, tt.severity, issue.Severity)
				assert.Equal(t, 2, issue.Line)
			}
			assert.True(t, result.Valid)
		})
	}
}

func TestVerifyDescriptionTooLongMessage(t *testing.T) {
	text := "---\nname: x\ndescription: " + strings.Repeat("b", 250) + "\n---\n"
	result := New().Verify("x", text)
	assert.Equal(t, "Description length 250 > 200", issueFor(t, result, CodeDescTooLong).Message)
}

func TestVerifyStructuralErrors(t *testing.T) {
	t.Run("no frontmatter still checks body", func(t *testing.T) {
		text := "# Title\n\nHusk altid at gemme filen.\n"
		result := New().Verify("x", text)

		assert.Equal(t, []Code{CodeNoFrontmatter, CodeBodyTooShort, CodeNoSections, CodeStyleWarning}, codes(result))
		assert.Equal(t, 1, result.Issues[0].Line)
		assert.Equal(t, "File must start with YAML frontmatter (---)", result.Issues[0].Message)
		assert.Equal(t, 3, issueFor(t, result, CodeStyleWarning).Line)
		assert.False(t, result.Valid)
	})

	t.Run("unclosed frontmatter skips body", func(t *testing.T) {
		result := New().Verify("x", "---\nname: x\nbody\n")
		assert.Equal(t, []Code{CodeInvalidFrontmatter}, codes(result))
		assert.Equal(t, 1, result.Issues[0].Line)
	})

	t.Run("metadata is not a mapping", func(t *testing.T) {
		text := "---\n- a\n- b\n---\n\n## Instructions\n\nRender one chart per KPI with labelled axes and a legend.\n"
		result := New().Verify("x", text)
		assert.Equal(t, []Code{CodeInvalidYAML}, codes(result))
		assert.Equal(t, 2, result.Issues[0].Line)
	})

	t.Run("yaml syntax error", func(t *testing.T) {
		text := "---\nname: [unclosed\n---\nshort\n"
		result := New().Verify("x", text)
		assert.Equal(t, []Code{CodeYAMLSyntax, CodeBodyTooShort, CodeNoSections}, codes(result))
		assert.True(t, strings.HasPrefix(result.Issues[0].Message, "YAML syntax error: "))
		assert.Equal(t, 4, result.Issues[1].Line)
	})
}

func TestVerifyStyleWarningLines(t *testing.T) {
	text := `---
name: x
description: "A skill with chatty phrasing in its body text"
---

## Instructions

Velkommen til rapporten.
Det er vigtigt at bruge korrekte tal.
Jeg kan godt hjælpe med det.
`
	result := New().Verify("x", text)

	var lines []int
	for _, issue := range result.Issues {
		if issue.Code == CodeStyleWarning {
			lines = append(lines, issue.Line)
			assert.Equal(t, SeverityWarning, issue.Severity)
			assert.Contains(t, issue.Message, "(matched '")
		}
	}
	assert.Equal(t, []int{8, 9, 10}, lines)
	assert.True(t, result.Valid)
}

func TestVerifyCustomRules(t *testing.T) {
	rules := RulesFromConfig(Config{MinDescriptionLength: 30, MinBodyLength: 5})
	rules.Style = nil

	text := "---\nname: x\ndescription: \"Twenty characters ok\"\n---\n\n## A\n\nHusk at\n"
	result := New(WithRules(rules)).Verify("x", text)
	assert.Equal(t, []Code{CodeDescTooShort}, codes(result))
	assert.Equal(t, 200, New(WithRules(rules)).Rules().MaxDescriptionLength)
}

func TestVerifyFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(dir, "ghost", "SKILL.md")
		result := New().VerifyFile(context.Background(), path)

		assert.Equal(t, "ghost", result.SkillName)
		require.Equal(t, []Code{CodeFileMissing}, codes(result))
		assert.Equal(t, "File not found: "+path, result.Issues[0].Message)
		assert.False(t, result.Valid)
	})

	t.Run("existing file", func(t *testing.T) {
		skillDir := filepath.Join(dir, "dashboard")
		require.NoError(t, os.MkdirAll(skillDir, 0o755))
		path := filepath.Join(skillDir, "SKILL.md")
		require.NoError(t, os.WriteFile(path, []byte(validSkill), 0o644))

		result := New().VerifyFile(context.Background(), path)
		assert.Equal(t, "dashboard", result.SkillName)
		assert.Equal(t, path, result.Path)
		assert.True(t, result.Valid)
	})
}

func TestVerifyAll(t *testing.T) {
	dir := t.TempDir()
	for name, content := range map[string]string{
		"dashboard": validSkill,
		"broken":    "no frontmatter here\n",
	} {
		skillDir := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(skillDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(skillDir, "SKILL.md"), []byte(content), 0o644))
	}

	discovery, err := skills.NewDiscovery(skills.WithSkillDirs(dir))
	require.NoError(t, err)

	results, err := New().VerifyAll(context.Background(), discovery)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "broken", results[0].SkillName)
	assert.False(t, results[0].Valid)
	assert.Equal(t, "dashboard", results[1].SkillName)
	assert.True(t, results[1].Valid)
}

func TestResultCounts(t *testing.T) {
	r := newResult("x")
	r.add(SeverityInfo, CodeDescVague, 2, "vague")
	assert.True(t, r.Passes(true))

	r.add(SeverityWarning, CodeNoSections, 4, "no sections")
	assert.Equal(t, 1, r.Count(SeverityWarning))
	assert.True(t, r.Valid)
	assert.False(t, r.Passes(true))

	r.add(SeverityError, CodePathTraversal, 0, "traversal")
	assert.False(t, r.Valid)
	assert.False(t, r.Passes(false))
}
