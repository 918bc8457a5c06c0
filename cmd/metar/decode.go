package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/render"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [REPORT...]",
	Short: "Decode a report from the arguments, or one report per line from stdin",
	Example: `  metar decode KTTA 031530Z AUTO 04008KT 10SM CLR 07/M02 A3001
  metar decode < reports.txt`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return decodeReports(cmd.OutOrStdout(), []string{strings.Join(args, " ")})
		}

		reports, err := readReports(cmd.InOrStdin())
		if err != nil {
			return err
		}
		if len(reports) == 0 {
			return fmt.Errorf("no reports given")
		}
		return decodeReports(cmd.OutOrStdout(), reports)
	},
}

// decodeReports renders each report and fails if any did not decode
func decodeReports(w io.Writer, reports []string) error {
	failed := 0
	for _, raw := range reports {
		r, err := metar.Decode(raw)
		if err != nil {
			failed++
			if rerr := render.DecodeFailure(w, globalFlags.Format, raw, err); rerr != nil {
				return rerr
			}
			continue
		}
		if err := render.Report(w, globalFlags.Format, r); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d reports failed to decode", failed, len(reports))
	}
	return nil
}

// readReports returns the non-blank lines of r
func readReports(r io.Reader) ([]string, error) {
	var reports []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			reports = append(reports, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	return reports, nil
}
