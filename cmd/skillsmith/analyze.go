package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/llm"
	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/session"
)

// analyzeUserID is recorded on sessions started from the analyze command
const analyzeUserID = "cli-analyze"

// AnalyzeConfig holds configuration for the analyze command
type AnalyzeConfig struct {
	Skill string
	File  string
	Org   string
}

// NewAnalyzeConfig creates a new AnalyzeConfig with default values
func NewAnalyzeConfig() *AnalyzeConfig {
	return &AnalyzeConfig{}
}

// Validate validates the AnalyzeConfig and returns an error if invalid
func (c *AnalyzeConfig) Validate() error {
	if c.Skill == "" {
		return errors.New("--skill is required")
	}
	return nil
}

// readTranscript reads the transcript from the configured file or from r
func (c *AnalyzeConfig) readTranscript(r io.Reader) (string, error) {
	if c.File != "" {
		data, err := os.ReadFile(c.File)
		if err != nil {
			return "", errors.Wrapf(err, "failed to read transcript %s", c.File)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read transcript from stdin")
	}
	return string(data), nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Extract suggestions from a conversation transcript",
	Long: `Analyze a USER:/ASSISTANT: conversation transcript with the configured LLM and
store the extracted suggestions for the given skill. The transcript is read from
--file, or from stdin when no file is given.`,
	Example: `  skillsmith analyze --skill pdf --file conversation.txt
  cat conversation.txt | skillsmith analyze --skill pdf --provider anthropic`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getAnalyzeConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		if config.File == "" {
			presenter.Info("Paste conversation (Ctrl+D to end):")
		}
		text, err := config.readTranscript(cmd.InOrStdin())
		if err != nil {
			presenter.Error(err, "Failed to read conversation")
			os.Exit(1)
		}
		if strings.TrimSpace(text) == "" {
			presenter.Error(errors.New("empty input"), "Nothing to analyze")
			os.Exit(1)
		}

		messages, err := session.ParseTranscript(text)
		if err != nil {
			presenter.Error(err, "Failed to parse conversation")
			os.Exit(1)
		}
		if len(messages) == 0 {
			presenter.Error(errors.New("no USER:/ASSISTANT: messages found"), "Could not parse conversation")
			os.Exit(1)
		}

		llmConfig, err := llm.GetConfigFromViper()
		if err != nil {
			presenter.Error(err, "Invalid LLM configuration")
			os.Exit(1)
		}
		generator, err := llm.New(ctx, llmConfig)
		if err != nil {
			presenter.Error(err, "Failed to create LLM client")
			os.Exit(1)
		}

		store, closeStore, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		sess := session.New(store, generator, session.WithUser(analyzeUserID), session.WithOrg(config.Org))
		if err := sess.TrackSkill(ctx, config.Skill, 0, true, ""); err != nil {
			presenter.Error(err, "Failed to record skill usage")
			os.Exit(1)
		}
		if err := sess.AddMessages(messages); err != nil {
			presenter.Error(err, "Failed to add messages")
			os.Exit(1)
		}

		presenter.Info(fmt.Sprintf("Analyzing %d messages for skill '%s' with %s...", len(messages), config.Skill, generator.Name()))
		extracted, err := sess.End(ctx)
		if err != nil {
			presenter.Error(err, "Failed to store extracted suggestions")
			os.Exit(1)
		}
		if len(extracted) == 0 {
			presenter.Info("No suggestions generated (the conversation may not contain feedback)")
			return
		}

		presenter.Success(fmt.Sprintf("Generated %d suggestions:", len(extracted)))
		for _, s := range extracted {
			fmt.Printf("    %-16s [%-12s] %s\n", s.SkillName, s.Category, s.Content)
		}
		presenter.Info("Run 'skillsmith apply' to preview the changes")
	},
}

func init() {
	analyzeCmd.Flags().String("skill", "", "Skill that was used in the conversation (required)")
	analyzeCmd.Flags().StringP("file", "f", "", "Transcript file (defaults to stdin)")
	analyzeCmd.Flags().String("org", "", "Organisation the extracted suggestions are attributed to")
	_ = analyzeCmd.MarkFlagRequired("skill")
}

// getAnalyzeConfigFromFlags extracts analyze configuration from command flags
func getAnalyzeConfigFromFlags(cmd *cobra.Command) *AnalyzeConfig {
	config := NewAnalyzeConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if file, err := cmd.Flags().GetString("file"); err == nil {
		config.File = file
	}
	if org, err := cmd.Flags().GetString("org"); err == nil {
		config.Org = org
	}
	return config
}
