package skilldoc

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed SKILL.md file
type Document struct {
	parts     *Parts
	meta      *yaml.Node
	metaErr   error
	metaDirty bool
	body      *Body
}

// New creates a document with the given metadata pairs (in order) and body
func New(metadata []Field, body *Body) *Document {
	mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range metadata {
		mapping.Content = append(mapping.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Value, Style: f.Style},
		)
	}

	if body == nil {
		body = &Body{}
	}

	return &Document{
		parts: &Parts{
			openFence:  Fence + "\n",
			closeFence: Fence + "\n",
		},
		meta:      &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mapping}},
		metaDirty: true,
		body:      body,
	}
}

// Field is a string metadata entry used when building a document
type Field struct {
	Key   string
	Value string
	Style yaml.Style
}

// Parse parses text strictly: fence and metadata problems are both errors.
func Parse(text string) (*Document, error) {
	doc, err := ParseLenient(text)
	if err != nil {
		return nil, err
	}
	if doc.metaErr != nil {
		return nil, doc.metaErr
	}
	return doc, nil
}

// ParseLenient parses text, failing only when the fences are malformed. A
// metadata block that is not a valid mapping is reported by MetadataErr and
// leaves the body fully usable.
func ParseLenient(text string) (*Document, error) {
	parts, err := Split(text)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		parts: parts,
		body:  ParseBody(parts.Body),
	}
	doc.meta, doc.metaErr = ParseMetadata(parts.Metadata)
	return doc, nil
}

// MetadataErr reports why the metadata block could not be used, if at all
func (d *Document) MetadataErr() error {
	return d.metaErr
}

// Body returns the mutable document body
func (d *Document) Body() *Body {
	return d.body
}

func (d *Document) mapping() *yaml.Node {
	if d.meta == nil {
		return nil
	}
	return d.meta.Content[0]
}

func (d *Document) lookup(key string) *yaml.Node {
	m := d.mapping()
	if m == nil {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// Has reports whether the metadata contains key
func (d *Document) Has(key string) bool {
	return d.lookup(key) != nil
}

// GetString returns a scalar metadata value
func (d *Document) GetString(key string) (string, bool) {
	n := d.lookup(key)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", false
	}
	return n.Value, true
}

// SetString updates a scalar metadata value in place, keeping its quoting
// style, or appends the key when absent. It is a no-op when the metadata
// block is unusable or the value is unchanged.
func (d *Document) SetString(key, value string) bool {
	m := d.mapping()
	if m == nil {
		return false
	}

	if n := d.lookup(key); n != nil {
		if n.Kind == yaml.ScalarNode && n.Value == value {
			return false
		}
		n.Kind = yaml.ScalarNode
		n.Tag = "!!str"
		n.Value = value
		n.Content = nil
		d.metaDirty = true
		return true
	}

	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
	d.metaDirty = true
	return true
}

// Metadata decodes the metadata mapping into a generic map
func (d *Document) Metadata() (map[string]any, error) {
	if d.metaErr != nil {
		return nil, d.metaErr
	}
	out := map[string]any{}
	if err := d.mapping().Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// String serializes the document. Unmodified metadata is emitted verbatim.
func (d *Document) String() string {
	meta := d.parts.Metadata
	if d.metaDirty && d.meta != nil {
		if encoded, err := encodeMetadata(d.meta); err == nil {
			meta = encoded
		}
	}

	closeFence := d.parts.closeFence
	if !strings.HasSuffix(closeFence, "\n") && d.body.String() != "" {
		closeFence += "\n"
	}

	var sb strings.Builder
	sb.WriteString(d.parts.openFence)
	sb.WriteString(meta)
	sb.WriteString(closeFence)
	sb.WriteString(d.body.String())
	return sb.String()
}
