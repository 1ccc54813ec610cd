package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	"github.com/jingkaihe/skillsmith/pkg/verify"
)

// VerifyConfig holds configuration for the verify command
type VerifyConfig struct {
	Skill   string
	Verbose bool
	Strict  bool
}

// NewVerifyConfig creates a new VerifyConfig with default values
func NewVerifyConfig() *VerifyConfig {
	return &VerifyConfig{}
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check skills against structure, style and security rules",
	Long: `Check SKILL.md documents for structural problems, weak descriptions, style issues
and possible secrets. Exits with status 1 when any skill fails: on errors by default,
and on warnings too with --strict.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getVerifyConfigFromFlags(cmd)

		verifier, err := newVerifier()
		if err != nil {
			presenter.Error(err, "Invalid verification configuration")
			os.Exit(1)
		}
		discovery, err := skills.Initialize()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill discovery")
			os.Exit(1)
		}

		var results []*verify.Result
		if config.Skill != "" {
			skill, err := discovery.GetSkill(config.Skill)
			if err != nil {
				presenter.Error(err, "Cannot verify skill")
				os.Exit(1)
			}
			result := verifier.VerifyFile(ctx, skill.Path)
			result.SkillName = skill.Name
			results = append(results, result)
		} else {
			results, err = verifier.VerifyAll(ctx, discovery)
			if err != nil {
				presenter.Error(err, "Verification incomplete")
			}
		}

		presenter.Section(fmt.Sprintf("Skill Verification: %d skills", len(results)))

		failed := 0
		clean := 0
		for _, result := range results {
			if len(result.Issues) == 0 {
				clean++
			}
			if !result.Passes(config.Strict) {
				failed++
			}
			printVerifyResult(result, config.Verbose)
		}

		presenter.Separator()
		fmt.Printf("Summary: %d clean, %d with issues, %d failing.\n", clean, len(results)-clean, failed)
		if failed > 0 || err != nil {
			os.Exit(1)
		}
	},
}

// printVerifyResult prints the skill status line and its issues. Clean
// skills are only listed when verbose.
func printVerifyResult(result *verify.Result, verbose bool) {
	switch {
	case len(result.Issues) == 0:
		if verbose {
			presenter.Success(result.SkillName)
		}
		return
	case !result.Valid:
		presenter.Warning(fmt.Sprintf("%s: invalid (%d errors, %d warnings)", result.SkillName, result.Count(verify.SeverityError), result.Count(verify.SeverityWarning)))
	default:
		presenter.Warning(fmt.Sprintf("%s: %d warnings", result.SkillName, result.Count(verify.SeverityWarning)))
	}
	for _, issue := range result.Issues {
		presenter.Issue(string(issue.Severity), string(issue.Code), issue.Message, issue.Line)
	}
}

func init() {
	verifyCmd.Flags().String("skill", "", "Only verify this skill")
	verifyCmd.Flags().BoolP("verbose", "v", false, "Also list skills without issues")
	verifyCmd.Flags().Bool("strict", false, "Treat warnings as failures")
}

// getVerifyConfigFromFlags extracts verify configuration from command flags
func getVerifyConfigFromFlags(cmd *cobra.Command) *VerifyConfig {
	config := NewVerifyConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil {
		config.Verbose = verbose
	}
	if strict, err := cmd.Flags().GetBool("strict"); err == nil {
		config.Strict = strict
	}
	return config
}
