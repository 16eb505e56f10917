package cmd

import (
	"notesync/config"
	"notesync/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "notesync",
	Short: "notesync - autosaving note editor backend",
	Long: `notesync serves the note editor: it hydrates each editor view from
Postgres, autosaves edits after a quiet period, and notifies list views
when dashboard items change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute is called by main.main().
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// loadConfig loads configuration and initialises the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}
