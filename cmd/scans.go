package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recondor/recondor/db"
)

var scansLimit int

// scansCmd lists recent scans in a table.
var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "List recent scans",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := db.NewDatabaseConnection()
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to the database")
			os.Exit(1)
		}
		defer store.Close()

		scans, err := store.ListScans(scansLimit)
		if err != nil {
			log.Error().Err(err).Msg("Could not list scans")
			os.Exit(1)
		}
		db.PrintScanTable(scans)
	},
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.Flags().IntVar(&scansLimit, "limit", 50, "Maximum number of scans to list")
}
