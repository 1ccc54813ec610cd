package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillsmith/pkg/presenter"
)

// ClearConfig holds configuration for the clear command
type ClearConfig struct {
	Yes bool
}

// NewClearConfig creates a new ClearConfig with default values
func NewClearConfig() *ClearConfig {
	return &ClearConfig{}
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete suggestions that have already been applied",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()
		config := getClearConfigFromFlags(cmd)

		store, closeStore, err := openStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open suggestion store")
			os.Exit(1)
		}
		defer closeStore()

		applied := 0
		for _, s := range store.All() {
			if s.Applied {
				applied++
			}
		}
		if applied == 0 {
			presenter.Info("No applied suggestions to clear")
			return
		}

		if !config.Yes && !confirmed(presenter.Prompt(fmt.Sprintf("Delete %d applied suggestions?", applied), "y", "N")) {
			presenter.Info("Aborted")
			return
		}

		removed, err := store.ClearApplied(ctx)
		if err != nil {
			presenter.Error(err, "Failed to clear applied suggestions")
			os.Exit(1)
		}
		presenter.Success(fmt.Sprintf("Cleared %d applied suggestions", removed))
	},
}

func confirmed(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func init() {
	clearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

// getClearConfigFromFlags extracts clear configuration from command flags
func getClearConfigFromFlags(cmd *cobra.Command) *ClearConfig {
	config := NewClearConfig()
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	return config
}
