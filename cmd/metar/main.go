// Command metar decodes METAR reports and fetches live observations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/render"
	"github.com/yegors/co-wx/pkg/logger"
)

var globalFlags struct {
	Format string
	Config string
	Debug  bool
}

var rootCmd = &cobra.Command{
	Use:   "metar",
	Short: "Decode METAR surface weather reports",
	Long: `metar decodes the North American subset of METAR reports: station,
observation time, AUTO, wind, visibility in statute miles, clouds,
temperature/dewpoint, altimeter and the AO1/AO2 and T-group remarks.

Examples:
  metar decode "KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001"
  cat reports.txt | metar decode --format json
  metar fetch KBOS KJFK`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return render.ValidateFormat(globalFlags.Format)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalFlags.Format, "format", render.FormatTable, "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&globalFlags.Config, "config", "", "path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(decodeCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration, falling back to defaults when no file exists
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithFallback(globalFlags.Config)
	if err != nil {
		if globalFlags.Config != "" {
			return nil, err
		}
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*logger.Logger, error) {
	if !globalFlags.Debug {
		return logger.NewNop(), nil
	}
	return logger.New(logger.Config{Level: "debug", Format: "console"})
}
