package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yegors/co-wx/internal/config"
	"github.com/yegors/co-wx/internal/render"
	"github.com/yegors/co-wx/internal/weather"
)

var fetchRaw bool

var fetchCmd = &cobra.Command{
	Use:   "fetch STATION...",
	Short: "Fetch and decode the latest report for one or more stations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		stations := fetchStations(cfg, args)
		client := weather.NewClient(cfg.Weather, log)

		timeout := time.Duration(cfg.Weather.RequestTimeoutSeconds) * time.Second * time.Duration(len(stations)+1)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if fetchRaw {
			return printRaw(cmd, client.FetchAll(ctx, stationCodes(stations)))
		}

		svc := weather.NewService(cfg.Weather, stations, client, nil, nil, nil, nil, log)

		failed := 0
		for _, st := range stations {
			obs, err := svc.Refresh(ctx, st.ICAO)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", st.ICAO, err)
				continue
			}
			if err := render.Observation(cmd.OutOrStdout(), globalFlags.Format, obs); err != nil {
				return err
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d stations could not be fetched", failed, len(stations))
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchRaw, "raw", false, "print the undecoded report text only")
}

// printRaw writes one raw report per line, reporting failures on stderr
func printRaw(cmd *cobra.Command, results []weather.FetchResult) error {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", res.Station, res.Err)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.Raw)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d stations could not be fetched", failed, len(results))
	}
	return nil
}

func stationCodes(stations []config.StationConfig) []string {
	codes := make([]string, 0, len(stations))
	for _, st := range stations {
		codes = append(codes, st.ICAO)
	}
	return codes
}

// fetchStations resolves codes against the configured stations so known locations feed derived values
func fetchStations(cfg *config.Config, codes []string) []config.StationConfig {
	known := make(map[string]config.StationConfig, len(cfg.Stations))
	for _, st := range cfg.Stations {
		known[st.ICAO] = st
	}

	stations := make([]config.StationConfig, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if st, ok := known[code]; ok {
			stations = append(stations, st)
			continue
		}
		stations = append(stations, config.StationConfig{ICAO: code})
	}
	return stations
}
