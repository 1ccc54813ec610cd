// Package skills discovers skill documents on disk. A skill is a directory
// containing a SKILL.md file whose YAML frontmatter names and describes it.
package skills

import "path/filepath"

// FileName is the document every skill directory carries
const FileName = "SKILL.md"

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name        string `json:"name"`        // Frontmatter name, or the directory name when absent
	Description string `json:"description"` // Empty when the frontmatter has none
	Directory   string `json:"directory"`   // Full path to the skill directory
	Path        string `json:"path"`        // Full path to SKILL.md
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// PathFor returns where a skill named name lives under dir when it does not
// exist yet
func PathFor(dir, name string) string {
	return filepath.Join(dir, name, FileName)
}
