package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recondor/recondor/db"
)

// clearCmd wipes all stored scans and findings.
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored scans and findings",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := db.NewDatabaseConnection()
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to the database")
			os.Exit(1)
		}
		defer store.Close()

		if err := store.ClearHistory(); err != nil {
			log.Error().Err(err).Msg("Could not clear scan history")
			os.Exit(1)
		}
		log.Info().Msg("Scan history cleared")
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
