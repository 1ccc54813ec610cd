package skilldoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const dashboardSkill = `---
name: dashboard
description: "Create interactive data dashboards with charts and visualizations"
---

# Dashboard Skill

Creates interactive dashboards for data visualization.

## Instructions

- Use clean, modern styling
- Include axis labels on all charts
- Default to responsive layouts
`

func TestSplit(t *testing.T) {
	parts, err := Split(dashboardSkill)
	require.NoError(t, err)

	assert.Equal(t, "name: dashboard\ndescription: \"Create interactive data dashboards with charts and visualizations\"\n", parts.Metadata)
	assert.Equal(t, 2, parts.MetadataLines)
	assert.Equal(t, "\n# Dashboard Skill", parts.Body[:len("\n# Dashboard Skill")])
	// body line 1 is "# Dashboard Skill", the 6th line of the file
	assert.Equal(t, 6, parts.BodyLine(1))
}

func TestSplitErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		code Code
	}{
		{"no fence", "# Just markdown\n", CodeNoFrontmatter},
		{"empty", "", CodeNoFrontmatter},
		{"unclosed", "---\nname: x\ndescription: y\n", CodeInvalidFrontmatter},
		{"fence only", "---", CodeInvalidFrontmatter},
		{"junk after fence", "----- not a fence\nname: x\n---\n", CodeInvalidFrontmatter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.text)
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.code, perr.Code)
			assert.Equal(t, 1, perr.Line)
		})
	}
}

func TestParseMetadataErrors(t *testing.T) {
	_, err := ParseMetadata("- a\n- b\n")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, CodeInvalidYAML, perr.Code)

	_, err = ParseMetadata("name: [unclosed\n")
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, CodeYAMLSyntax, perr.Code)

	_, err = ParseMetadata("")
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, CodeInvalidYAML, perr.Code)
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	inputs := []string{
		dashboardSkill,
		"---\nname: x\ndescription: y\n---\n",
		"---\nname: x\ndescription: y\n---",
		"---\nname: x # comment\n---\nbody without trailing newline",
		"---\nname: x\n---\n\n## A\n\n- one\n\n```\n## not a header\n```\n\n## B\ntext\n\n\n",
	}

	for _, in := range inputs {
		doc, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, doc.String())
	}
}

func TestParseStrictVersusLenient(t *testing.T) {
	text := "---\n- not\n- a map\n---\n\n## Notes\n\n- keep\n"

	_, err := Parse(text)
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, CodeInvalidYAML, perr.Code)

	doc, err := ParseLenient(text)
	require.NoError(t, err)
	require.Error(t, doc.MetadataErr())
	assert.Equal(t, []string{"keep"}, doc.Body().Section("Notes").Items())
	assert.False(t, doc.SetString("description", "ignored"))
	assert.Equal(t, text, doc.String())
}

func TestMetadataAccess(t *testing.T) {
	doc, err := Parse(dashboardSkill)
	require.NoError(t, err)

	name, ok := doc.GetString("name")
	require.True(t, ok)
	assert.Equal(t, "dashboard", name)
	assert.False(t, doc.Has("version"))

	assert.False(t, doc.SetString("name", "dashboard"))
	assert.True(t, doc.SetString("description", "Dashboards. Triggers: sales report"))

	out := doc.String()
	assert.Contains(t, out, "name: dashboard\n")
	assert.Contains(t, out, "description: \"Dashboards. Triggers: sales report\"\n")

	reparsed, err := Parse(out)
	require.NoError(t, err)
	desc, _ := reparsed.GetString("description")
	assert.Equal(t, "Dashboards. Triggers: sales report", desc)

	meta, err := reparsed.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "dashboard", meta["name"])
}

func TestSectionItems(t *testing.T) {
	doc, err := Parse(dashboardSkill)
	require.NoError(t, err)

	body := doc.Body()
	require.Len(t, body.Sections, 1)

	section := body.Section("Instructions")
	require.NotNil(t, section)
	assert.Equal(t, []string{
		"Use clean, modern styling",
		"Include axis labels on all charts",
		"Default to responsive layouts",
	}, section.Items())

	section.SetItems(append(section.Items(), "Prefer dark theme"))
	assert.Contains(t, doc.String(), "- Default to responsive layouts\n- Prefer dark theme\n")
}

func TestSetItemsWithoutExistingList(t *testing.T) {
	s := &Section{Title: "Notes", Lines: []string{"", "Free text first."}}
	s.SetItems([]string{"a", "b"})
	assert.Equal(t, []string{"", "- a", "- b", "", "Free text first."}, s.Lines)
	assert.Equal(t, []string{"a", "b"}, s.Items())

	empty := NewSection("Empty", nil)
	assert.Equal(t, []string{"", ""}, empty.Lines)
}

func TestBodyInsertAndAppend(t *testing.T) {
	body := ParseBody("\n# Title\n\n## Metrics\n\nold\n")

	body.Insert(body.Index("Metrics"), NewSection("User Preferences", []string{"Use dark theme"}))
	body.Append(NewSection("Tail", []string{"last"}))

	assert.Equal(t,
		"\n# Title\n\n## User Preferences\n\n- Use dark theme\n\n## Metrics\n\nold\n\n## Tail\n\n- last\n\n",
		body.String())
}

func TestBodyReplaceEndsWithNewline(t *testing.T) {
	body := ParseBody("\n## Notes\n\nkeep\n\n## Metrics\nold")
	body.Replace(body.Index("Metrics"), &Section{Title: "Metrics", Lines: []string{"", "new", ""}})

	text := body.String()
	assert.Equal(t, "\n## Notes\n\nkeep\n\n## Metrics\n\nnew\n\n", text)
	assert.Equal(t, text, ParseBody(text).String())
}

func TestNewDocument(t *testing.T) {
	body := &Body{Preamble: []string{"", "# Demo Skill"}}
	doc := New([]Field{
		{Key: "name", Value: "demo"},
		{Key: "description", Value: "Skill for demo.", Style: yaml.DoubleQuotedStyle},
	}, body)
	doc.Body().Append(NewSection("Improvements", []string{"Faster"}))

	assert.Equal(t,
		"---\nname: demo\ndescription: \"Skill for demo.\"\n---\n\n# Demo Skill\n\n## Improvements\n\n- Faster\n\n",
		doc.String())
}
