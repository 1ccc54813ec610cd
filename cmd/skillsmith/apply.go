package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/optimizer"
	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
)

// ApplyConfig holds configuration for the apply command
type ApplyConfig struct {
	Confirm bool
	Skill   string
	All     bool
}

// NewApplyConfig creates a new ApplyConfig with default values
func NewApplyConfig() *ApplyConfig {
	return &ApplyConfig{}
}

// Validate validates the ApplyConfig and returns an error if invalid
func (c *ApplyConfig) Validate() error {
	if c.All && c.Skill != "" {
		return errors.New("--all and --skill cannot be used together")
	}
	if c.Skill != "" {
		if _, err := skills.CompilePattern(c.Skill); err != nil {
			return err
		}
	}
	return nil
}

// Pattern returns the skill pattern handed to the optimizer
func (c *ApplyConfig) Pattern() string {
	if c.All {
		return ""
	}
	return c.Skill
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Merge pending suggestions into SKILL.md files",
	Long: `Merge pending suggestions into their SKILL.md files and refresh the usage metrics table.

Without --confirm this is a dry run: the unified diff of every change is printed
and nothing is written or marked applied.`,
	Example: `  skillsmith apply
  skillsmith apply --skill 'pdf*' --confirm`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getApplyConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		openFn := openStore
		if !config.Confirm {
			openFn = openReadOnlyStore
		}
		store, closeStore, err := openFn(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		discovery, err := skills.Initialize()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill discovery")
			os.Exit(1)
		}

		dryRun := !config.Confirm
		report, applyErr := optimizer.New(store, discovery, skills.ConfiguredDir()).Apply(ctx, config.Pattern(), dryRun)
		if report == nil || len(report.Skills) == 0 {
			if applyErr != nil {
				presenter.Error(applyErr, "Failed to apply suggestions")
				os.Exit(1)
			}
			presenter.Success("No pending suggestions to apply")
			return
		}

		if dryRun {
			presenter.Section("DRY-RUN PREVIEW")
		} else {
			presenter.Section("APPLYING CHANGES")
		}
		printApplyReport(report)

		if applyErr != nil {
			presenter.Error(applyErr, "Some skills could not be updated")
			os.Exit(1)
		}
		if dryRun && report.Changed() > 0 {
			presenter.Info("This was a dry run. To write the changes, run: skillsmith apply --confirm")
		}
	},
}

func printApplyReport(report *optimizer.Report) {
	for _, res := range report.Skills {
		fmt.Printf("  %s (%d suggestions)\n", res.SkillName, len(res.Suggestions))
		for _, s := range res.Suggestions {
			fmt.Printf("     [%-12s] %s\n", s.Category, truncate(s.Content, 60))
		}

		switch res.Outcome {
		case optimizer.OutcomeFailed:
			presenter.Warning(fmt.Sprintf("%s: %v", res.SkillName, res.Err))
		case optimizer.OutcomeUnchanged:
			presenter.Info("(no changes)")
		default:
			if report.DryRun {
				presenter.Diff(res.Diff)
				continue
			}
			presenter.Success(fmt.Sprintf("%s %s (%d suggestions applied)", res.Outcome, res.Path, res.Summary.SuggestionsApplied))
		}
	}
}

func init() {
	applyCmd.Flags().Bool("confirm", false, "Write the changes instead of previewing them")
	applyCmd.Flags().String("skill", "", "Only apply suggestions for skills matching this glob pattern")
	applyCmd.Flags().Bool("all", false, "Apply pending suggestions for every skill")
}

// getApplyConfigFromFlags extracts apply configuration from command flags
func getApplyConfigFromFlags(cmd *cobra.Command) *ApplyConfig {
	config := NewApplyConfig()
	if confirm, err := cmd.Flags().GetBool("confirm"); err == nil {
		config.Confirm = confirm
	}
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	return config
}
