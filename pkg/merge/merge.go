// Package merge folds batches of categorized suggestions into skill
// documents. Merges are deterministic and idempotent: applying the same
// batch to an already merged document yields the same bytes.
package merge

import (
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillsmith/pkg/skilldoc"
	"github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// Action describes what happened to the document
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

const (
	triggersSeparator  = " Triggers: "
	maxCreatedTriggers = 3
	descriptionField   = "description"
)

// sectionRule maps a category to the body section its items live in. The
// order of sectionRules is the order new sections are created.
type sectionRule struct {
	category skills.Category
	title    string
}

var sectionRules = []sectionRule{
	{skills.CategoryPreference, "User Preferences"},
	{skills.CategoryCorrection, "Learned Corrections"},
	{skills.CategoryImprovement, "Improvements"},
}

// SectionTitle returns the body section a category is merged into. Triggers
// live in the description and have no section.
func SectionTitle(c skills.Category) (string, bool) {
	for _, r := range sectionRules {
		if r.category == c {
			return r.title, true
		}
	}
	return "", false
}

// ChangeSummary reports what a merge did to a document
type ChangeSummary struct {
	Action             Action   `json:"action"`
	SectionsModified   []string `json:"sections_modified"`
	SuggestionsApplied int      `json:"suggestions_applied"`
}

// Result is the outcome of Apply. Summary is nil when the document is
// byte-identical to its input; callers must then neither write nor mark
// the batch applied.
type Result struct {
	Text    string
	Summary *ChangeSummary
}

// Changed reports whether the merge produced different text
func (r *Result) Changed() bool {
	return r.Summary != nil
}

// Engine merges suggestion batches into skill documents
type Engine struct{}

// NewEngine creates a merge engine
func NewEngine() *Engine {
	return &Engine{}
}

// buckets holds suggestion contents by category, input order preserved
type buckets struct {
	byCategory map[skills.Category][]string
	applied    int
}

func partition(batch []skills.Suggestion) buckets {
	b := buckets{byCategory: map[skills.Category][]string{}}
	for _, s := range batch {
		if !s.Category.Valid() {
			continue
		}
		content := normalizeItem(s.Content)
		if content == "" {
			continue
		}
		b.byCategory[s.Category] = append(b.byCategory[s.Category], content)
		b.applied++
	}
	return b
}

// Apply merges batch into existing, the current document text. An empty or
// malformed document (no closing fence) is treated as absent and a new one
// is synthesized. metrics feeds the regenerated Metrics section.
func (e *Engine) Apply(existing, skillName string, batch []skills.Suggestion, metrics skills.SkillMetrics) (*Result, error) {
	b := partition(batch)

	doc, err := skilldoc.ParseLenient(existing)
	if err != nil {
		return e.create(skillName, b, metrics), nil
	}

	summary := &ChangeSummary{
		Action:             ActionUpdated,
		SectionsModified:   []string{},
		SuggestionsApplied: b.applied,
	}

	if triggers := b.byCategory[skills.CategoryTrigger]; len(triggers) > 0 {
		if mergeTriggers(doc, triggers) {
			summary.SectionsModified = append(summary.SectionsModified, descriptionField)
		}
	}

	body := doc.Body()
	for _, rule := range sectionRules {
		items := b.byCategory[rule.category]
		if len(items) == 0 {
			continue
		}
		upsertSection(body, rule.title, items)
		summary.SectionsModified = append(summary.SectionsModified, rule.title)
	}

	if i := body.Index(MetricsTitle); i >= 0 {
		body.Replace(i, MetricsSection(metrics))
	} else {
		body.Append(MetricsSection(metrics))
	}

	text := doc.String()
	if text == existing {
		return &Result{Text: text}, nil
	}
	return &Result{Text: text, Summary: summary}, nil
}

func (e *Engine) create(skillName string, b buckets, metrics skills.SkillMetrics) *Result {
	description := "Skill for " + skillName + "."
	if phrases := dedupe(b.byCategory[skills.CategoryTrigger]); len(phrases) > 0 {
		if len(phrases) > maxCreatedTriggers {
			phrases = phrases[:maxCreatedTriggers]
		}
		description += triggersSeparator + strings.Join(splitTriggers(phrases), ", ")
	}

	body := &skilldoc.Body{Preamble: []string{
		"",
		"# " + displayName(skillName) + " Skill",
		"",
		"This skill was auto-generated based on usage patterns.",
	}}

	summary := &ChangeSummary{
		Action:             ActionCreated,
		SectionsModified:   []string{},
		SuggestionsApplied: b.applied,
	}

	for _, rule := range sectionRules {
		items := dedupe(b.byCategory[rule.category])
		if len(items) == 0 {
			continue
		}
		body.Append(skilldoc.NewSection(rule.title, items))
		summary.SectionsModified = append(summary.SectionsModified, rule.title)
	}
	body.Append(MetricsSection(metrics))

	doc := skilldoc.New([]skilldoc.Field{
		{Key: "name", Value: skillName},
		{Key: descriptionField, Value: description, Style: yaml.DoubleQuotedStyle},
	}, body)

	return &Result{Text: doc.String(), Summary: summary}
}

// mergeTriggers folds trigger phrases into the description's trailing
// " Triggers: a, b" list. It reports whether the merge ran, which is false
// only when the metadata is unusable or has no description.
func mergeTriggers(doc *skilldoc.Document, triggers []string) bool {
	if doc.MetadataErr() != nil {
		return false
	}
	current, ok := doc.GetString(descriptionField)
	if !ok {
		return false
	}

	base, existing, _ := strings.Cut(current, triggersSeparator)
	var all []string
	if existing != "" {
		all = append(all, strings.Split(existing, ",")...)
	}
	all = append(all, triggers...)
	merged := splitTriggers(all)

	doc.SetString(descriptionField, base+triggersSeparator+strings.Join(merged, ", "))
	return true
}

// upsertSection merges items into the titled section, creating it before
// the Metrics section (or at the end) when absent.
func upsertSection(body *skilldoc.Body, title string, items []string) {
	if section := body.Section(title); section != nil {
		existing := section.Items()
		merged := dedupe(append(append([]string{}, existing...), items...))
		if !equal(existing, merged) {
			section.SetItems(merged)
		}
		return
	}

	section := skilldoc.NewSection(title, dedupe(items))
	if i := body.Index(MetricsTitle); i >= 0 {
		body.Insert(i, section)
		return
	}
	body.Append(section)
}

// splitTriggers breaks comma-joined phrases apart, trims them and removes
// empties and duplicates while keeping first-seen order.
func splitTriggers(phrases []string) []string {
	var out []string
	for _, p := range phrases {
		out = append(out, strings.Split(p, ",")...)
	}
	return dedupe(out)
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// normalizeItem keeps suggestion content on a single bullet line
func normalizeItem(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\n", " ")
	return strings.TrimSpace(content)
}

// displayName turns "sales-report" into "Sales Report"
func displayName(skillName string) string {
	words := strings.FieldsFunc(skillName, func(r rune) bool {
		return r == '-' || unicode.IsSpace(r)
	})
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
