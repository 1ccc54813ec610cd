package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/presenter"
)

// MetricsRecordConfig holds configuration for the metrics record command
type MetricsRecordConfig struct {
	Skill   string
	Success bool
	ExecMs  int64
}

// NewMetricsRecordConfig creates a new MetricsRecordConfig with default values
func NewMetricsRecordConfig() *MetricsRecordConfig {
	return &MetricsRecordConfig{Success: true}
}

// Validate validates the MetricsRecordConfig and returns an error if invalid
func (c *MetricsRecordConfig) Validate() error {
	if c.Skill == "" {
		return errors.New("--skill is required")
	}
	if c.ExecMs < 0 {
		return errors.Errorf("execution time cannot be negative: %d", c.ExecMs)
	}
	return nil
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show or record skill usage metrics",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		store, closeStore, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		if len(args) == 1 {
			presenter.Metrics(store.Metrics(args[0]))
			return
		}
		all := store.AllMetrics()
		if len(all) == 0 {
			presenter.Info("No skill usage recorded yet")
			return
		}
		presenter.Section(fmt.Sprintf("Tracked skills: %d", len(all)))
		for _, m := range all {
			presenter.Metrics(m)
		}
	},
}

var metricsRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record one skill invocation",
	Example: `  skillsmith metrics record --skill pdf --exec-ms 1200
  skillsmith metrics record --skill pdf --success=false`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getMetricsRecordConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		store, closeStore, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		if err := store.RecordUsage(ctx, config.Skill, config.Success, config.ExecMs); err != nil {
			presenter.Error(err, "Failed to record usage")
			os.Exit(1)
		}
		presenter.Metrics(store.Metrics(config.Skill))
	},
}

func init() {
	defaults := NewMetricsRecordConfig()
	metricsRecordCmd.Flags().String("skill", "", "Skill that was invoked (required)")
	metricsRecordCmd.Flags().Bool("success", defaults.Success, "Whether the invocation succeeded")
	metricsRecordCmd.Flags().Int64("exec-ms", defaults.ExecMs, "Execution time in milliseconds")
	_ = metricsRecordCmd.MarkFlagRequired("skill")

	metricsCmd.AddCommand(withTracing(metricsRecordCmd))
}

// getMetricsRecordConfigFromFlags extracts metrics record configuration from command flags
func getMetricsRecordConfigFromFlags(cmd *cobra.Command) *MetricsRecordConfig {
	config := NewMetricsRecordConfig()
	if skill, err := cmd.Flags().GetString("skill"); err == nil {
		config.Skill = skill
	}
	if success, err := cmd.Flags().GetBool("success"); err == nil {
		config.Success = success
	}
	if execMs, err := cmd.Flags().GetInt64("exec-ms"); err == nil {
		config.ExecMs = execMs
	}
	return config
}
