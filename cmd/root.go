package cmd

import (
	"fmt"
	"os"

	"geojournal/config"
	"geojournal/logger"
	"geojournal/server"

	"github.com/spf13/cobra"
)

// cfg is loaded once before any command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geojournal",
	Short: "geojournal keeps a geotagged journal of notes and voice clips.",
	Long: `geojournal keeps a timeline of text notes and short audio clips, each tagged
with the place it was written. Without a subcommand it runs the web server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		logger.InitLogger(logger.Config{
			Level:      logger.LogLevel(cfg.LogLevel),
			Console:    cmd.HasParent() && cmd.Name() != "server",
			OutputPath: cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		})
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("Starting geojournal server...")
		return server.Start(cfg)
	},
}

// Execute executes the root command.
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
