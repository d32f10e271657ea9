package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jpillora/go-tld"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/progress"
	"github.com/recondor/recondor/pkg/proxy"
	"github.com/recondor/recondor/pkg/ratelimit"
	"github.com/recondor/recondor/pkg/scan/engine"
)

var scanTarget string
var scanCustomID string

var validate = validator.New()

// scanCmd runs one full scan in the foreground and prints a findings summary
// once the pipeline completes.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a reconnaissance scan against a target domain",
	Run: func(cmd *cobra.Command, args []string) {
		if err := validateTarget(scanTarget); err != nil {
			log.Error().Err(err).Msg("Invalid scan target")
			os.Exit(1)
		}

		store, err := db.NewDatabaseConnection()
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to the database")
			os.Exit(1)
		}
		defer store.Close()

		events := make(chan progress.Event, 64)
		summaries := make(chan map[string]int, 1)
		go func() {
			for event := range events {
				if event.Type == progress.EventStatus && event.Status == string(db.ScanStatusCompleted) {
					select {
					case summaries <- event.Summary:
					default:
					}
				}
			}
		}()

		scanID := scanCustomID
		if scanID == "" {
			scanID = engine.GenerateScanID()
		}

		e := engine.NewScanEngine(store, scanRateLimiter(), proxy.NewSelectorFromConfig(), engine.WithEvents(events))
		if err := e.RunScan(context.Background(), scanTarget, scanID); err != nil {
			log.Error().Err(err).Str("scan", scanID).Msg("Scan failed")
			os.Exit(1)
		}

		select {
		case summary := <-summaries:
			if len(summary) > 0 {
				db.PrintSummaryTable(summary)
			}
		case <-time.After(2 * time.Second):
		}
		fmt.Printf("Scan %s finished. Inspect the findings with: recondor results --scan %s\n", scanID, scanID)
	},
}

func scanRateLimiter() ratelimit.RateLimiter {
	rate := viper.GetFloat64("rate_limit")
	if rate <= 0 {
		return ratelimit.NewNoOpRateLimiter()
	}
	return ratelimit.NewTokenBucket(rate)
}

func validateTarget(target string) error {
	if target == "" {
		return errors.New("a target domain is required")
	}
	if err := validate.Var(target, "required,fqdn"); err != nil {
		return fmt.Errorf("%s does not look like a valid domain", target)
	}
	parsed, err := tld.Parse("https://" + target)
	if err != nil || parsed.Domain == "" || parsed.TLD == "" {
		return fmt.Errorf("%s is not a registrable domain", target)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&scanTarget, "target", "t", "", "Target domain to scan (example.com)")
	scanCmd.Flags().StringVar(&scanCustomID, "scan-id", "", "Reuse a specific scan ID instead of generating one")
	scanCmd.MarkFlagRequired("target")
}
