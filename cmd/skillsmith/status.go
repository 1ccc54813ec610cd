package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
	skilltypes "github.com/jingkaihe/skillsmith/pkg/types/skills"
)

// StatusConfig holds configuration for the status command
type StatusConfig struct {
	Skill string
}

// NewStatusConfig creates a new StatusConfig with default values
func NewStatusConfig() *StatusConfig {
	return &StatusConfig{}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending suggestions and skill metrics",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getStatusConfigFromFlags(cmd)

		store, closeStore, err := openReadOnlyStore(ctx)
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
		names, err := discovery.ListSkillNames()
		if err != nil {
			presenter.Warning(fmt.Sprintf("Failed to scan skills: %v", err))
		}

		presenter.Section("Skill Optimizer Status")
		presenter.Info(fmt.Sprintf("Skills dir: %s", skills.ConfiguredDir()))
		presenter.Info(fmt.Sprintf("Skills found: %d", len(names)))

		batches := store.PendingBySkill(skilltypes.Filter{SkillName: config.Skill})
		if len(batches) == 0 {
			presenter.Success("No pending suggestions")
		} else {
			total := 0
			for _, batch := range batches {
				total += len(batch.Suggestions)
			}
			presenter.Section(fmt.Sprintf("Pending suggestions: %d", total))
			for _, batch := range batches {
				fmt.Printf("  %s:\n", batch.SkillName)
				for _, s := range batch.Suggestions {
					fmt.Printf("    [%-12s] %s\n", s.Category, truncate(s.Content, 70))
				}
			}
		}

		metrics := store.AllMetrics()
		if config.Skill != "" {
			metrics = []skilltypes.SkillMetrics{store.Metrics(config.Skill)}
		}
		if len(metrics) > 0 {
			presenter.Section(fmt.Sprintf("Tracked skills: %d", len(metrics)))
			for _, m := range metrics {
				presenter.Metrics(m)
			}
		}
	},
}

func init() {
	statusCmd.Flags().String("skill", "", "Only show suggestions and metrics for this skill")
}

// getStatusConfigFromFlags extracts status configuration from command flags
func getStatusConfigFromFlags(cmd *cobra.Command) *StatusConfig {
	config := NewStatusConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	return config
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
