package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recondor/recondor/api"
	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/scan/manager"
)

// serveCmd starts the REST and websocket API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Starts the REST and websocket API used to launch scans and follow their progress.`,
	Run: func(cmd *cobra.Command, args []string) {
		store, err := db.NewDatabaseConnection()
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to the database")
			os.Exit(1)
		}

		sm := manager.New(store)
		defer sm.Stop()

		if err := api.StartAPI(sm); err != nil {
			log.Error().Err(err).Msg("API server stopped")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
