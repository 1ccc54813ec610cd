package skilldoc

import "strings"

const sectionPrefix = "## "

// Section is a "## <Title>" header and the raw lines that follow it up to
// the next section header.
type Section struct {
	Title  string
	Lines  []string
	header string
}

// NewSection creates a section whose content is a bulleted item list
func NewSection(title string, items []string) *Section {
	s := &Section{Title: title}
	s.SetItems(items)
	return s
}

// Header returns the header line as it appears in the document
func (s *Section) Header() string {
	if s.header != "" {
		return s.header
	}
	return sectionPrefix + s.Title
}

// itemRange locates the bullet list directly under the header, optionally
// separated from it by a single blank line.
func (s *Section) itemRange() (start, end int, ok bool) {
	start = 0
	if len(s.Lines) > 0 && strings.TrimSpace(s.Lines[0]) == "" {
		start = 1
	}
	end = start
	for end < len(s.Lines) && isBullet(s.Lines[end]) {
		end++
	}
	return start, end, end > start
}

// Items returns the trimmed text of each bullet in the section's item list
func (s *Section) Items() []string {
	start, end, ok := s.itemRange()
	if !ok {
		return nil
	}
	items := make([]string, 0, end-start)
	for _, line := range s.Lines[start:end] {
		items = append(items, bulletText(line))
	}
	return items
}

// SetItems replaces the section's item list, leaving any other content intact
func (s *Section) SetItems(items []string) {
	bullets := make([]string, 0, len(items))
	for _, item := range items {
		bullets = append(bullets, "- "+item)
	}

	if start, end, ok := s.itemRange(); ok {
		lines := make([]string, 0, len(s.Lines)-(end-start)+len(bullets))
		lines = append(lines, s.Lines[:start]...)
		lines = append(lines, bullets...)
		lines = append(lines, s.Lines[end:]...)
		s.Lines = lines
		return
	}

	rest := s.Lines
	if len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	}

	lines := make([]string, 0, len(rest)+len(bullets)+2)
	lines = append(lines, "")
	lines = append(lines, bullets...)
	if len(rest) == 0 || strings.TrimSpace(rest[0]) != "" {
		lines = append(lines, "")
	}
	lines = append(lines, rest...)
	s.Lines = lines
}

// Body is the markdown following the metadata block
type Body struct {
	// Preamble holds the lines before the first section header
	Preamble []string
	Sections []*Section

	trailingNewline bool
}

// ParseBody splits markdown into a preamble and "## " sections. Header-like
// lines inside fenced code blocks are treated as content.
func ParseBody(text string) *Body {
	b := &Body{}
	if text == "" {
		return b
	}

	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		b.trailingNewline = true
		lines = lines[:len(lines)-1]
	}

	var current *Section
	inCode := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inCode = !inCode
		}

		if !inCode && strings.HasPrefix(line, sectionPrefix) {
			current = &Section{
				Title:  strings.TrimSpace(line[len(sectionPrefix):]),
				header: line,
			}
			b.Sections = append(b.Sections, current)
			continue
		}

		if current == nil {
			b.Preamble = append(b.Preamble, line)
		} else {
			current.Lines = append(current.Lines, line)
		}
	}

	return b
}

// String reassembles the body text
func (b *Body) String() string {
	lines := make([]string, 0, len(b.Preamble)+len(b.Sections)*8)
	lines = append(lines, b.Preamble...)
	for _, s := range b.Sections {
		lines = append(lines, s.Header())
		lines = append(lines, s.Lines...)
	}

	if len(lines) == 0 {
		if b.trailingNewline {
			return "\n"
		}
		return ""
	}

	out := strings.Join(lines, "\n")
	if b.trailingNewline {
		out += "\n"
	}
	return out
}

// Index returns the position of the section with the exact title, or -1
func (b *Body) Index(title string) int {
	for i, s := range b.Sections {
		if s.Title == title {
			return i
		}
	}
	return -1
}

// Section returns the section with the exact title, or nil
func (b *Body) Section(title string) *Section {
	if i := b.Index(title); i >= 0 {
		return b.Sections[i]
	}
	return nil
}

// Insert places a section at position i, shifting later sections down.
// A blank line is kept between the new header and whatever precedes it.
func (b *Body) Insert(i int, s *Section) {
	if i < 0 || i > len(b.Sections) {
		i = len(b.Sections)
	}
	b.separateBefore(i)
	b.Sections = append(b.Sections, nil)
	copy(b.Sections[i+1:], b.Sections[i:])
	b.Sections[i] = s
	b.trailingNewline = true
}

// Replace swaps the section at position i for s. Like Insert, it leaves the
// body ending with a newline.
func (b *Body) Replace(i int, s *Section) {
	if i < 0 || i >= len(b.Sections) {
		b.Append(s)
		return
	}
	b.Sections[i] = s
	b.trailingNewline = true
}

// Append adds a section at the end of the body
func (b *Body) Append(s *Section) {
	b.Insert(len(b.Sections), s)
}

// separateBefore ensures the content preceding section slot i ends with a
// blank line, dropping surplus trailing blank lines at the end of the body.
func (b *Body) separateBefore(i int) {
	var prev *[]string
	if i == 0 {
		prev = &b.Preamble
	} else {
		prev = &b.Sections[i-1].Lines
	}

	if i == 0 && len(*prev) == 0 {
		return
	}

	if i == len(b.Sections) {
		for len(*prev) > 1 && strings.TrimSpace((*prev)[len(*prev)-1]) == "" &&
			strings.TrimSpace((*prev)[len(*prev)-2]) == "" {
			*prev = (*prev)[:len(*prev)-1]
		}
	}

	if len(*prev) == 0 || strings.TrimSpace((*prev)[len(*prev)-1]) != "" {
		*prev = append(*prev, "")
	}
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ")
}

func bulletText(line string) string {
	return strings.TrimSpace(line[2:])
}
