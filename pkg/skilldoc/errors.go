package skilldoc

import "fmt"

// Code identifies why a document failed to parse. The values are part of
// the verification issue wire contract.
type Code string

const (
	CodeNoFrontmatter      Code = "NO_FRONTMATTER"
	CodeInvalidFrontmatter Code = "INVALID_FRONTMATTER"
	CodeInvalidYAML        Code = "INVALID_YAML"
	CodeYAMLSyntax         Code = "YAML_SYNTAX"
)

// ParseError describes a malformed skill document
type ParseError struct {
	Code    Code
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
