package cmd

import (
	"fmt"
	"os"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/recondor/recondor/lib"
	_ "github.com/recondor/recondor/pkg/modules/all"
)

var cfgFile string
var debugLogging bool
var prettyLogs bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "recondor",
	Short: "Automated external reconnaissance pipeline",
	Long: `Recondor runs staged reconnaissance scans against a target domain:
subdomain discovery, port scanning, service enrichment, HTTP probing and
screenshot capture. Findings are persisted so they can be listed, filtered
and exported once a scan completes.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.recondor.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLogging, "debug", false, "Use debug level logging")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty", true, "Pretty console logging (disable for plain JSON lines)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if prettyLogs {
			lib.ZeroConsoleAndFileLog(viper.GetString("logging.file"))
		} else {
			lib.ZeroJSONLog(viper.GetString("logging.file"))
		}
		if debugLogging {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(configuredLogLevel())
		}
		return nil
	}
}

func configuredLogLevel() zerolog.Level {
	level, err := zerolog.ParseLevel(viper.GetString("logging.level"))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".recondor" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".recondor")
	}

	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
