package verify

// Severity grades a verification issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code identifies the rule an issue came from. Codes are a stable wire
// contract shared with the HTTP API and CLI output.
type Code string

const (
	CodeNoFrontmatter      Code = "NO_FRONTMATTER"
	CodeInvalidFrontmatter Code = "INVALID_FRONTMATTER"
	CodeInvalidYAML        Code = "INVALID_YAML"
	CodeYAMLSyntax         Code = "YAML_SYNTAX"
	CodeParseError         Code = "PARSE_ERROR"
	CodeMissingField       Code = "MISSING_FIELD"
	CodeDescTooLong        Code = "DESC_TOO_LONG"
	CodeDescTooShort       Code = "DESC_TOO_SHORT"
	CodeDescVague          Code = "DESC_VAGUE"
	CodeBodyTooShort       Code = "BODY_TOO_SHORT"
	CodeNoSections         Code = "NO_SECTIONS"
	CodeStyleWarning       Code = "STYLE_WARNING"
	CodePathTraversal      Code = "PATH_TRAVERSAL"
	CodePossibleSecret     Code = "POSSIBLE_SECRET"
	CodeFileMissing        Code = "FILE_MISSING"
)

// Issue is a single finding. Line is 1-based; 0 means the issue applies to
// the whole document.
type Issue struct {
	Code     Code     `json:"code"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
	Severity Severity `json:"severity"`
}

// Result collects the issues found in one skill document
type Result struct {
	SkillName string  `json:"skill_name"`
	Path      string  `json:"path,omitempty"`
	Valid     bool    `json:"valid"`
	Issues    []Issue `json:"issues"`
}

func newResult(skillName string) *Result {
	return &Result{SkillName: skillName, Valid: true, Issues: []Issue{}}
}

func (r *Result) add(severity Severity, code Code, line int, message string) {
	r.Issues = append(r.Issues, Issue{
		Code:     code,
		Message:  message,
		Line:     line,
		Severity: severity,
	})
	if severity == SeverityError {
		r.Valid = false
	}
}

// Count returns how many issues have the given severity
func (r *Result) Count(severity Severity) int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			n++
		}
	}
	return n
}

// Has reports whether any issue carries code
func (r *Result) Has(code Code) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// Passes reports whether the document is acceptable. Strict mode also
// rejects warnings; info findings never fail a document.
func (r *Result) Passes(strict bool) bool {
	if !r.Valid {
		return false
	}
	return !strict || r.Count(SeverityWarning) == 0
}
