// Package skilldoc models a SKILL.md document: a fenced YAML metadata block
// followed by a markdown body made of "## " sections. Documents are parsed
// once, mutated in memory and serialized back; untouched regions are
// reproduced byte for byte.
package skilldoc

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Fence delimits the metadata block
const Fence = "---"

// Parts is the result of splitting a document on its metadata fences
type Parts struct {
	// Metadata is the raw text between the fence lines, including its trailing newline
	Metadata string
	// Body is everything after the closing fence line
	Body string
	// MetadataLines is the number of lines inside the metadata block
	MetadataLines int

	openFence  string
	closeFence string
}

// BodyLine converts a 0-based body line index into a 1-based document line
func (p *Parts) BodyLine(index int) int {
	return p.MetadataLines + 2 + index + 1
}

// Split separates the metadata block from the body. The text must start
// with a fence line and contain a later line consisting of the fence alone.
func Split(text string) (*Parts, error) {
	if !strings.HasPrefix(text, Fence) {
		return nil, &ParseError{
			Code:    CodeNoFrontmatter,
			Line:    1,
			Message: "file must start with YAML frontmatter (---)",
		}
	}

	openEnd := strings.IndexByte(text, '\n')
	if openEnd < 0 || strings.TrimSpace(text[:openEnd]) != Fence {
		return nil, &ParseError{
			Code:    CodeInvalidFrontmatter,
			Line:    1,
			Message: "frontmatter not closed properly with ---",
		}
	}
	metaStart := openEnd + 1

	pos := metaStart
	for pos <= len(text) {
		lineEnd := strings.IndexByte(text[pos:], '\n')
		var line string
		next := len(text) + 1
		if lineEnd < 0 {
			line = text[pos:]
		} else {
			line = text[pos : pos+lineEnd]
			next = pos + lineEnd + 1
		}

		if strings.TrimSpace(line) == Fence {
			closeEnd := min(next, len(text))
			meta := text[metaStart:pos]
			return &Parts{
				Metadata:      meta,
				Body:          text[closeEnd:],
				MetadataLines: strings.Count(meta, "\n"),
				openFence:     text[:metaStart],
				closeFence:    text[pos:closeEnd],
			}, nil
		}

		if lineEnd < 0 {
			break
		}
		pos = next
	}

	return nil, &ParseError{
		Code:    CodeInvalidFrontmatter,
		Line:    1,
		Message: "frontmatter not closed properly with ---",
	}
}

// ParseMetadata decodes the raw metadata text into a YAML document node whose
// single child is a mapping.
func ParseMetadata(raw string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &ParseError{
			Code:    CodeYAMLSyntax,
			Line:    2,
			Message: "YAML syntax error",
			Err:     err,
		}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, &ParseError{
			Code:    CodeInvalidYAML,
			Line:    2,
			Message: "frontmatter must be a dictionary/map",
		}
	}

	return &doc, nil
}

func encodeMetadata(doc *yaml.Node) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return "", errors.Wrap(err, "failed to encode metadata")
	}
	if err := enc.Close(); err != nil {
		return "", errors.Wrap(err, "failed to flush metadata encoder")
	}
	return buf.String(), nil
}
