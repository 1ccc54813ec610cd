package skills

import (
	"github.com/spf13/viper"
)

// DefaultDir is the repo-local skills directory
const DefaultDir = "./.claude/skills"

// ConfiguredDir returns the skills directory from configuration, falling
// back to DefaultDir.
func ConfiguredDir() string {
	if dir := viper.GetString("skills_dir"); dir != "" {
		return dir
	}
	return DefaultDir
}

// Initialize creates a discovery over the configured skills directory
func Initialize() (*Discovery, error) {
	return NewDiscovery(WithSkillDirs(ConfiguredDir()))
}
