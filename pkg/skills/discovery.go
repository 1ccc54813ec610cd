package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillPattern = "**/" + FileName

// Discovery handles skill discovery from configured directories
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories. Earlier directories take
// precedence when two skills share a name.
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = dirs
		return nil
	}
}

// WithDefaultDirs initializes with the repo-local skill directory
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		d.skillDirs = []string{DefaultDir}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		if err := WithDefaultDirs()(d); err != nil {
			return nil, err
		}
	} else {
		for _, opt := range opts {
			if err := opt(d); err != nil {
				return nil, err
			}
		}
	}

	return d, nil
}

// Dirs returns the configured skill directories
func (d *Discovery) Dirs() []string {
	return d.skillDirs
}

// DiscoverSkills finds every SKILL.md below the configured directories
func (d *Discovery) DiscoverSkills() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, dir := range d.skillDirs {
		if err := d.discoverSkillsFromDir(dir, skills); err != nil {
			return nil, err
		}
	}

	return skills, nil
}

func (d *Discovery) discoverSkillsFromDir(dir string, skills map[string]*Skill) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to stat skills directory %s", dir)
	}

	matches, err := doublestar.Glob(os.DirFS(dir), skillPattern)
	if err != nil {
		return errors.Wrapf(err, "failed to scan skills directory %s", dir)
	}
	sort.Strings(matches)

	for _, match := range matches {
		skill, err := loadSkill(filepath.Join(dir, filepath.FromSlash(match)))
		if err != nil {
			continue
		}
		if _, exists := skills[skill.Name]; !exists {
			skills[skill.Name] = skill
		}
	}

	return nil
}

// GetSkill returns a specific skill by name
func (d *Discovery) GetSkill(name string) (*Skill, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	skill, exists := skills[name]
	if !exists {
		return nil, errors.Errorf("skill '%s' not found", name)
	}

	return skill, nil
}

// ListSkillNames returns the names of all available skills, sorted
func (d *Discovery) ListSkillNames() ([]string, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	return SortedNames(skills), nil
}

// SortedNames returns the keys of skills in lexical order
func SortedNames(skills map[string]*Skill) []string {
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// loadSkill reads a SKILL.md file. Unparseable frontmatter is tolerated so
// broken skills remain discoverable for verification; the name then falls
// back to the directory name.
func loadSkill(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	directory := filepath.Dir(path)
	skill := &Skill{
		Name:      filepath.Base(directory),
		Directory: directory,
		Path:      path,
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return skill, nil
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil || metaData == nil {
		return skill, nil
	}

	if name, _ := metaData["name"].(string); name != "" {
		skill.Name = name
	}
	skill.Description, _ = metaData["description"].(string)

	return skill, nil
}

// FilterByPattern keeps the skills whose name matches a glob pattern such
// as "dash*". An empty pattern keeps everything.
func FilterByPattern(skills map[string]*Skill, pattern string) (map[string]*Skill, error) {
	if pattern == "" {
		return skills, nil
	}

	g, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}

	filtered := make(map[string]*Skill)
	for name, skill := range skills {
		if g.Match(name) {
			filtered[name] = skill
		}
	}
	return filtered, nil
}

// CompilePattern compiles a skill-name glob
func CompilePattern(pattern string) (glob.Glob, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid skill pattern %q", pattern)
	}
	return g, nil
}
