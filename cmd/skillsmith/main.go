package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillsmith/pkg/logger"
	"github.com/jingkaihe/skillsmith/pkg/presenter"
	"github.com/jingkaihe/skillsmith/pkg/skills"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLSMITH")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillsmith")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()

	viper.SetDefault("store", storeJSON)
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
}

var rootCmd = &cobra.Command{
	Use:   "skillsmith",
	Short: "Continuously improve SKILL.md documents from usage feedback",
	Long: `skillsmith collects suggestions about skill documents, either injected by hand or
extracted from conversation transcripts, and merges them back into the SKILL.md files
together with usage metrics. It can also verify skill documents for structural,
style and security problems.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning(fmt.Sprintf("Invalid log level %q, using info", viper.GetString("log_level")))
		}
		logger.SetLogFormat(viper.GetString("log_format"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	rootCmd.PersistentFlags().String("skills-dir", skills.DefaultDir, "Directory containing skill folders with SKILL.md files")
	rootCmd.PersistentFlags().String("data-dir", "", "Directory for suggestion and metrics data (default <skills-dir>/.optimizer)")
	rootCmd.PersistentFlags().String("store", storeJSON, "Storage backend (json, sqlite, memory)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider used for transcript analysis (anthropic, openai, google)")
	rootCmd.PersistentFlags().String("model", "", "LLM model to use (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")

	viper.BindPFlag("skills_dir", rootCmd.PersistentFlags().Lookup("skills-dir"))
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("store", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(withTracing(statusCmd))
	rootCmd.AddCommand(withTracing(injectCmd))
	rootCmd.AddCommand(withTracing(applyCmd))
	rootCmd.AddCommand(withTracing(analyzeCmd))
	rootCmd.AddCommand(withTracing(verifyCmd))
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(withTracing(clearCmd))
	rootCmd.AddCommand(versionCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
