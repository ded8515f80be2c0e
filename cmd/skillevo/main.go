package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/evolvekit/skillevo/pkg/audit"
	"github.com/evolvekit/skillevo/pkg/backup"
	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/engine"
	"github.com/evolvekit/skillevo/pkg/logger"
	"github.com/evolvekit/skillevo/pkg/presenter"
	"github.com/evolvekit/skillevo/pkg/proposal"
	"github.com/evolvekit/skillevo/pkg/skilldoc"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("SKILLEVO")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.skillevo")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

// workspace bundles the collaborators every command needs.
type workspace struct {
	cfg      *config.Config
	registry *skilldoc.Registry
	store    proposal.Store
	backups  *backup.Manager
	auditLog *audit.Log
	engine   *engine.Engine
}

func newWorkspace() (*workspace, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	registry := skilldoc.NewRegistry(cfg.SkillsDir)
	store, err := proposal.NewFileStore(cfg.PendingDir(), time.Now)
	if err != nil {
		return nil, err
	}
	backups, err := backup.NewManager(cfg.BackupsDir(), time.Now)
	if err != nil {
		return nil, err
	}
	auditLog, err := audit.NewLog(cfg.LogsDir(), cfg.Location())
	if err != nil {
		return nil, err
	}

	return &workspace{
		cfg:      cfg,
		registry: registry,
		store:    store,
		backups:  backups,
		auditLog: auditLog,
		engine:   engine.New(cfg, registry, store, backups, auditLog),
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "skillevo",
	Short: "Skill evolution toolkit for agent skill libraries",
	Long: `Skillevo analyzes skill usage telemetry, proposes improvements to
SKILL.md documents, and applies approved changes with versioned backups
and an audit trail.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if level, err := cmd.Flags().GetString("log-level"); err == nil && level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				presenter.Warning(fmt.Sprintf("Unknown log level %q, keeping default", level))
			}
		}
		if format, err := cmd.Flags().GetString("log-format"); err == nil && format != "" {
			logger.SetLogFormat(format)
		}
		if quiet, err := cmd.Flags().GetBool("quiet"); err == nil {
			presenter.SetQuiet(quiet)
		}
		if path, err := cmd.Flags().GetString("config"); err == nil && path != "" {
			viper.SetConfigFile(path)
			if err := viper.ReadInConfig(); err != nil {
				presenter.Error(err, "Failed to read config file")
				os.Exit(1)
			}
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func main() {
	// Add global flags
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides default lookup)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().Bool("quiet", false, "Suppress non-essential output")

	// Add subcommands
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(reportCmd)

	// Execute
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
