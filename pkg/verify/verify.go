// Package verify lints skill documents. Checks run in three groups
// (structure, body and security) and accumulate line-located issues into a
// single Result; malformed input is reported, never returned as an error.
package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/skilldoc"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/telemetry"
)

var sectionHeader = regexp.MustCompile(`(?m)^##\s+`)

// Verifier applies a rule set to skill documents
type Verifier struct {
	rules Rules
}

// Option configures a Verifier
type Option func(*Verifier)

// WithRules replaces the default rule set
func WithRules(rules Rules) Option {
	return func(v *Verifier) {
		v.rules = rules
	}
}

// New creates a verifier with the default rules unless overridden
func New(opts ...Option) *Verifier {
	v := &Verifier{rules: DefaultRules()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Rules returns the rule set in use
func (v *Verifier) Rules() Rules {
	return v.rules
}

// Verify checks document text. Issues are ordered structure, body, security.
func (v *Verifier) Verify(skillName, text string) *Result {
	result := newResult(skillName)

	body, bodyLine := v.checkStructure(text, result)
	if bodyLine > 0 {
		v.checkBody(body, bodyLine, result)
	}
	v.checkSecurity(text, result)

	return result
}

// VerifyFile checks the SKILL.md at path. The skill name is the name of
// the directory holding the file.
func (v *Verifier) VerifyFile(ctx context.Context, path string) *Result {
	skillName := filepath.Base(filepath.Dir(path))

	content, err := os.ReadFile(path)
	if err != nil {
		result := newResult(skillName)
		result.Path = path
		if os.IsNotExist(err) {
			result.add(SeverityError, CodeFileMissing, 0, fmt.Sprintf("File not found: %s", path))
		} else {
			result.add(SeverityError, CodeParseError, 0, fmt.Sprintf("Failed to parse file: %v", err))
		}
		return result
	}

	result := v.Verify(skillName, string(content))
	result.Path = path

	logger.G(ctx).
		WithField("skill", skillName).
		WithField("issues", len(result.Issues)).
		WithField("valid", result.Valid).
		Debug("verified skill")

	return result
}

// VerifyAll checks every discovered skill, in name order. Skills that
// cannot be checked are reported together in the returned error while the
// others are still verified.
func (v *Verifier) VerifyAll(ctx context.Context, discovery *skills.Discovery) ([]*Result, error) {
	var results []*Result

	err := telemetry.WithSpan(ctx, "verify.all", func(ctx context.Context) error {
		found, err := discovery.DiscoverSkills()
		if err != nil {
			return errors.Wrap(err, "failed to discover skills")
		}

		var errs *multierror.Error
		for _, name := range skills.SortedNames(found) {
			if err := ctx.Err(); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "verification of %s aborted", name))
				break
			}
			result := v.VerifyFile(ctx, found[name].Path)
			result.SkillName = name
			results = append(results, result)
		}
		return errs.ErrorOrNil()
	})

	return results, err
}

// checkStructure validates the fences and metadata. It returns the body to
// check and the document line the body starts on, or 0 when the body
// cannot be located.
func (v *Verifier) checkStructure(text string, result *Result) (string, int) {
	parts, err := skilldoc.Split(text)
	if err != nil {
		var perr *skilldoc.ParseError
		if !errors.As(err, &perr) {
			result.add(SeverityError, CodeParseError, 0, fmt.Sprintf("Failed to parse file: %v", err))
			return "", 0
		}

		switch perr.Code {
		case skilldoc.CodeNoFrontmatter:
			result.add(SeverityError, CodeNoFrontmatter, perr.Line, "File must start with YAML frontmatter (---)")
			return text, 1
		default:
			result.add(SeverityError, CodeInvalidFrontmatter, perr.Line, "Frontmatter not closed properly with ---")
			return "", 0
		}
	}

	doc, err := skilldoc.ParseMetadata(parts.Metadata)
	if err != nil {
		var perr *skilldoc.ParseError
		if errors.As(err, &perr) && perr.Code == skilldoc.CodeYAMLSyntax {
			result.add(SeverityError, CodeYAMLSyntax, perr.Line, fmt.Sprintf("YAML syntax error: %v", perr.Err))
		} else {
			result.add(SeverityError, CodeInvalidYAML, 2, "Frontmatter must be a dictionary/map")
		}
		return parts.Body, parts.BodyLine(0)
	}

	v.checkMetadata(doc.Content[0], result)
	return parts.Body, parts.BodyLine(0)
}

func (v *Verifier) checkMetadata(mapping *yaml.Node, result *Result) {
	values := map[string]*yaml.Node{}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		values[mapping.Content[i].Value] = mapping.Content[i+1]
	}

	for _, field := range v.rules.RequiredFields {
		if _, ok := values[field]; !ok {
			result.add(SeverityError, CodeMissingField, 2, fmt.Sprintf("Missing required field: '%s'", field))
		}
	}

	node, ok := values["description"]
	if !ok || node.Kind != yaml.ScalarNode {
		return
	}

	description := node.Value
	length := utf8.RuneCountInString(description)
	if length > v.rules.MaxDescriptionLength {
		result.add(SeverityWarning, CodeDescTooLong, 2,
			fmt.Sprintf("Description length %d > %d", length, v.rules.MaxDescriptionLength))
	}
	if length < v.rules.MinDescriptionLength {
		result.add(SeverityWarning, CodeDescTooShort, 2,
			fmt.Sprintf("Description is too short (<%d chars)", v.rules.MinDescriptionLength))
	}
	if mentionsWhen(description) && length < v.rules.VagueDescriptionLength {
		result.add(SeverityInfo, CodeDescVague, 2,
			"Description might be too vague. Use specific trigger keywords.")
	}
}

func (v *Verifier) checkBody(body string, firstLine int, result *Result) {
	if utf8.RuneCountInString(strings.TrimSpace(body)) < v.rules.MinBodyLength {
		result.add(SeverityWarning, CodeBodyTooShort, firstLine,
			"Skill body is suspiciously short. Add more instructions or examples.")
	}

	if !sectionHeader.MatchString(body) {
		result.add(SeverityWarning, CodeNoSections, firstLine,
			"No '## Section' headers found. Structure your skill with sections.")
	}

	for i, line := range strings.Split(body, "\n") {
		for _, rule := range v.rules.Style {
			if rule.Pattern.MatchString(line) {
				result.add(SeverityWarning, CodeStyleWarning, firstLine+i,
					fmt.Sprintf("Style: %s (matched '%s')", rule.Reason, rule.Pattern.String()))
			}
		}
	}
}

func (v *Verifier) checkSecurity(text string, result *Result) {
	if v.rules.PathTraversal != nil && v.rules.PathTraversal.MatchString(text) {
		result.add(SeverityError, CodePathTraversal, 0, "Potential path traversal detected ('../').")
	}

	for _, rule := range v.rules.Secrets {
		if rule.Pattern.MatchString(text) {
			result.add(SeverityError, CodePossibleSecret, 0, rule.Message)
		}
	}
}
