package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/recondor/recondor/db"
)

var resultsTarget string
var resultsScan string
var resultsModule string
var resultsType string
var resultsFormat string
var resultsSubdomains bool

// resultsCmd lists stored findings, filtered by target or scan.
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored findings",
	Long: `Lists findings stored by previous scans, filtered by target or scan ID and
optionally by module or finding type. Output is a table by default, or JSON
and YAML for machine consumption.`,
	Run: func(cmd *cobra.Command, args []string) {
		if resultsTarget == "" && resultsScan == "" {
			log.Error().Msg("Provide a target (--target) or a scan ID (--scan)")
			os.Exit(1)
		}

		store, err := db.NewDatabaseConnection()
		if err != nil {
			log.Error().Err(err).Msg("Could not connect to the database")
			os.Exit(1)
		}
		defer store.Close()

		if resultsSubdomains {
			printSubdomains(store)
			return
		}

		findings, err := store.GetFindings(db.FindingFilter{
			Target: resultsTarget,
			ScanID: resultsScan,
			Module: resultsModule,
			Type:   resultsType,
		})
		if err != nil {
			log.Error().Err(err).Msg("Could not list findings")
			os.Exit(1)
		}

		switch resultsFormat {
		case "table":
			db.PrintFindingTable(findings)
		case "json":
			data, err := json.MarshalIndent(exportFindings(findings), "", "  ")
			if err != nil {
				log.Error().Err(err).Msg("Could not encode findings")
				os.Exit(1)
			}
			fmt.Println(string(data))
		case "yaml":
			data, err := yaml.Marshal(exportFindings(findings))
			if err != nil {
				log.Error().Err(err).Msg("Could not encode findings")
				os.Exit(1)
			}
			fmt.Print(string(data))
		default:
			log.Error().Str("format", resultsFormat).Msg("Unknown output format, expected table, json or yaml")
			os.Exit(1)
		}
	},
}

func printSubdomains(store *db.DatabaseConnection) {
	if resultsTarget == "" {
		log.Error().Msg("Listing subdomains requires a target (--target)")
		os.Exit(1)
	}
	subdomains, err := store.GetUniqueSubdomains(resultsTarget)
	if err != nil {
		log.Error().Err(err).Msg("Could not list subdomains")
		os.Exit(1)
	}
	switch resultsFormat {
	case "json":
		data, _ := json.MarshalIndent(subdomains, "", "  ")
		fmt.Println(string(data))
	case "yaml":
		data, _ := yaml.Marshal(subdomains)
		fmt.Print(string(data))
	default:
		for _, subdomain := range subdomains {
			fmt.Println(subdomain)
		}
	}
}

// exportFindings flattens findings for JSON and YAML output, decoding the
// stored payload instead of emitting raw bytes.
func exportFindings(findings []*db.Finding) []map[string]any {
	out := make([]map[string]any, 0, len(findings))
	for _, finding := range findings {
		entry := map[string]any{
			"id":        finding.ID,
			"target":    finding.Target,
			"module":    finding.Module,
			"source":    finding.Source,
			"type":      finding.Type,
			"timestamp": finding.Timestamp,
			"data":      db.PayloadItems(finding.Data),
		}
		if finding.ScanID != nil {
			entry["scan_id"] = *finding.ScanID
		}
		out = append(out, entry)
	}
	return out
}

func init() {
	rootCmd.AddCommand(resultsCmd)
	resultsCmd.Flags().StringVarP(&resultsTarget, "target", "t", "", "Filter findings by target domain")
	resultsCmd.Flags().StringVar(&resultsScan, "scan", "", "Filter findings by scan ID")
	resultsCmd.Flags().StringVarP(&resultsModule, "module", "m", "", "Filter by module path (subdomain/crtsh) or category (subdomain)")
	resultsCmd.Flags().StringVar(&resultsType, "type", "", "Filter by finding type (subdomain, port, http_service, ...)")
	resultsCmd.Flags().StringVarP(&resultsFormat, "format", "f", "table", "Output format: table, json or yaml")
	resultsCmd.Flags().BoolVar(&resultsSubdomains, "subdomains", false, "List unique discovered subdomains for the target")
}
