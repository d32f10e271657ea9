package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recondor/recondor/db"
	"github.com/recondor/recondor/pkg/progress"
)

var watchScan string
var watchEndpoint string

// watchCmd follows a scan over the API websocket and prints its events as
// they arrive, starting with the replayed history of an already running scan.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a scan's progress over the API websocket",
	Run: func(cmd *cobra.Command, args []string) {
		endpoint := strings.TrimSuffix(watchEndpoint, "/") + "/ws/scans/" + watchScan
		conn, _, err := websocket.DefaultDialer.Dial(endpoint, nil)
		if err != nil {
			log.Error().Err(err).Str("endpoint", endpoint).Msg("Could not connect to the API websocket")
			os.Exit(1)
		}
		defer conn.Close()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		events := make(chan progress.Event)
		readErrs := make(chan error, 1)
		go func() {
			for {
				var event progress.Event
				if err := conn.ReadJSON(&event); err != nil {
					readErrs <- err
					return
				}
				events <- event
			}
		}()

		for {
			select {
			case event := <-events:
				printWatchEvent(event)
				if event.Type == progress.EventStatus && db.ScanStatus(event.Status).IsTerminal() {
					return
				}
			case err := <-readErrs:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				log.Error().Err(err).Msg("Websocket connection lost")
				os.Exit(1)
			case <-interrupt:
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	},
}

func printWatchEvent(event progress.Event) {
	switch event.Type {
	case progress.EventStatus:
		line := event.Message
		if line == "" {
			line = event.Status
		}
		if event.Status == string(db.ScanStatusFailed) {
			fmt.Fprintln(color.Output, color.RedString(line))
		} else {
			fmt.Fprintln(color.Output, color.GreenString(line))
		}
	case progress.EventPhase:
		fmt.Fprintln(color.Output, color.CyanString("== %s (%s) ==", event.Phase, strings.Join(event.Modules, ", ")))
	case progress.EventModuleEnd:
		if event.Status == string(db.ScanStatusFailed) {
			fmt.Fprintln(color.Output, color.RedString("%s failed: %s", event.Module, event.Error))
		} else {
			fmt.Fprintln(color.Output, color.GreenString("%s completed", event.Module))
		}
	case progress.EventError:
		fmt.Fprintln(color.Output, color.YellowString(event.Message))
	default:
		fmt.Fprintln(color.Output, event.Message)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchScan, "scan", "", "Scan ID to follow")
	watchCmd.Flags().StringVar(&watchEndpoint, "api", "ws://localhost:8013", "API websocket base endpoint")
	watchCmd.MarkFlagRequired("scan")
}
