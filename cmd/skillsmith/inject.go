package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	skilltypes "github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// injectSessionID stamps suggestions added by hand
const injectSessionID = "cli-inject"

// InjectConfig holds configuration for the inject command
type InjectConfig struct {
	Skill    string
	Category string
	Content  string
	Reason   string
	UserID   string
	Org      string
}

// NewInjectConfig creates a new InjectConfig with default values
func NewInjectConfig() *InjectConfig {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return &InjectConfig{
		Reason: "Injected via CLI",
		UserID: user,
	}
}

// Validate checks the suggestion fields against the known skills
func (c *InjectConfig) Validate(known []string) error {
	if c.Skill == "" {
		return errors.New("--skill is required")
	}
	if strings.TrimSpace(c.Content) == "" {
		return errors.New("--content is required")
	}
	if _, err := skilltypes.ParseCategory(c.Category); err != nil {
		return err
	}
	for _, name := range known {
		if name == c.Skill {
			return nil
		}
	}
	return errors.Errorf("unknown skill '%s'. Known skills: %s", c.Skill, strings.Join(known, ", "))
}

// Suggestion builds the suggestion to store
func (c *InjectConfig) Suggestion() skilltypes.Suggestion {
	category, _ := skilltypes.ParseCategory(c.Category)
	s := skilltypes.NewSuggestion(c.Skill, category, strings.TrimSpace(c.Content))
	s.Reason = c.Reason
	s.SessionID = injectSessionID
	s.UserID = c.UserID
	s.Org = c.Org
	return s
}

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Add a suggestion for a skill by hand",
	Example: `  skillsmith inject --skill pdf --category preference --content "Default to A4 paper"
  skillsmith inject --skill pdf --category trigger --content "make a pdf"`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getInjectConfigFromFlags(cmd)

		discovery, err := skills.Initialize()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill discovery")
			os.Exit(1)
		}
		known, err := discovery.ListSkillNames()
		if err != nil {
			presenter.Error(err, "Failed to scan skills")
			os.Exit(1)
		}
		if err := config.Validate(known); err != nil {
			presenter.Error(err, "Invalid suggestion")
			os.Exit(1)
		}

		store, closeStore, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		added, err := store.Add(ctx, config.Suggestion())
		if err != nil {
			presenter.Error(err, "Failed to save suggestion")
			os.Exit(1)
		}
		if !added {
			presenter.Warning(fmt.Sprintf("An identical pending suggestion already exists for '%s'", config.Skill))
			return
		}
		presenter.Success(fmt.Sprintf("Added [%s] suggestion for '%s':", config.Category, config.Skill))
		fmt.Printf("   %s\n", config.Content)
	},
}

func init() {
	defaults := NewInjectConfig()
	injectCmd.Flags().String("skill", "", "Skill name (required)")
	injectCmd.Flags().String("category", "", "Suggestion category (preference, correction, trigger, improvement)")
	injectCmd.Flags().String("content", "", "Suggestion text (required)")
	injectCmd.Flags().String("reason", defaults.Reason, "Why the suggestion is being made")
	injectCmd.Flags().String("user", defaults.UserID, "User the suggestion is attributed to")
	injectCmd.Flags().String("org", "", "Organisation the suggestion is attributed to")
	_ = injectCmd.MarkFlagRequired("skill")
	_ = injectCmd.MarkFlagRequired("category")
	_ = injectCmd.MarkFlagRequired("content")
}

// getInjectConfigFromFlags extracts inject configuration from command flags
func getInjectConfigFromFlags(cmd *cobra.Command) *InjectConfig {
	config := NewInjectConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if category, err := cmd.Flags().GetString("category"); err == nil {
		config.Category = category
	}
	if content, err := cmd.Flags().GetString("content"); err == nil {
		config.Content = content
	}
	if reason, err := cmd.Flags().GetString("reason"); err == nil {
		config.Reason = reason
	}
	if user, err := cmd.Flags().GetString("user"); err == nil {
		config.UserID = user
	}
	if org, err := cmd.Flags().GetString("org"); err == nil {
		config.Org = org
	}
	return config
}
