package verify

import (
	"regexp"
	"strings"
)

// StyleRule flags a phrasing that does not belong in skill instructions
type StyleRule struct {
	Pattern *regexp.Regexp
	Reason  string
}

// SecretRule flags a value that looks like a hardcoded credential
type SecretRule struct {
	Pattern *regexp.Regexp
	Message string
}

// Rules holds the thresholds and pattern tables the verifier applies
type Rules struct {
	RequiredFields       []string
	MinDescriptionLength int
	MaxDescriptionLength int
	// VagueDescriptionLength is the length under which a description
	// mentioning "when" is considered vague
	VagueDescriptionLength int
	MinBodyLength          int
	Style                  []StyleRule
	PathTraversal          *regexp.Regexp
	Secrets                []SecretRule
}

// Config is the user-tunable part of Rules, decoded from the verify.*
// configuration keys
type Config struct {
	MinDescriptionLength int `mapstructure:"min_description_length" json:"min_description_length" yaml:"min_description_length"`
	MaxDescriptionLength int `mapstructure:"max_description_length" json:"max_description_length" yaml:"max_description_length"`
	MinBodyLength        int `mapstructure:"min_body_length" json:"min_body_length" yaml:"min_body_length"`
}

var defaultStyle = []StyleRule{
	{regexp.MustCompile(`(?i)\bsom (en )?AI(?:\-)?(sprog)?model`), "Avoid self-referencing as an AI. Just be the persona."},
	{regexp.MustCompile(`(?i)\bher er (en )?liste`), "Avoid announcing lists ('Here is a list'). Just provide the list."},
	{regexp.MustCompile(`(?i)\blad os (dykke|kigge) (ned )?i`), "Avoid filler intro phrases ('Let's dive in'). Start directly."},
	{regexp.MustCompile(`(?i)\bhusk (altid )?at`), "Avoid preaching ('Remember to'). Use imperative instructions."},
	{regexp.MustCompile(`(?i)\bdet er vigtigt at`), "Avoid padding ('It is important to'). State the requirement directly."},
	{regexp.MustCompile(`(?i)\bjeg (kan|vil) (godt )?hjælpe`), "Avoid stating ability ('I can help'). Just help."},
	{regexp.MustCompile(`(?i)\bvelkommen til`), "Avoid 'Welcome to' in skill instructions. It's a tool, not a website."},
}

var defaultSecrets = []SecretRule{
	{regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*['"][a-zA-Z0-9_\-]{20,}['"]`), "Possible hardcoded API key"},
	{regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"]{8,}['"]`), "Possible hardcoded password"},
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		MinDescriptionLength: 10,
		MaxDescriptionLength: 200,
		MinBodyLength:        50,
	}
}

// DefaultRules returns the built-in rule set
func DefaultRules() Rules {
	return RulesFromConfig(DefaultConfig())
}

// RulesFromConfig builds the built-in rule set with the given thresholds.
// Zero thresholds fall back to their defaults.
func RulesFromConfig(cfg Config) Rules {
	defaults := DefaultConfig()
	if cfg.MinDescriptionLength <= 0 {
		cfg.MinDescriptionLength = defaults.MinDescriptionLength
	}
	if cfg.MaxDescriptionLength <= 0 {
		cfg.MaxDescriptionLength = defaults.MaxDescriptionLength
	}
	if cfg.MinBodyLength <= 0 {
		cfg.MinBodyLength = defaults.MinBodyLength
	}

	return Rules{
		RequiredFields:         []string{"name", "description"},
		MinDescriptionLength:   cfg.MinDescriptionLength,
		MaxDescriptionLength:   cfg.MaxDescriptionLength,
		VagueDescriptionLength: 50,
		MinBodyLength:          cfg.MinBodyLength,
		Style:                  defaultStyle,
		PathTraversal:          regexp.MustCompile(`\.\.[/\\]`),
		Secrets:                defaultSecrets,
	}
}

func mentionsWhen(description string) bool {
	return strings.Contains(strings.ToLower(description), "when")
}
