package cmd

import (
	"geojournal/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the geojournal web server",
	Long:  `Run the HTTP server that serves the journal page, the JSON API and the compose and timeline WebSockets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
