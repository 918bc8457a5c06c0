// Package render formats decoded reports and observations for terminal output.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/weather"
)

// Output formats
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// ValidateFormat rejects unknown output formats
func ValidateFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q: expected table or json", format)
}

// Report writes a decoded report
func Report(w io.Writer, format string, r metar.Report) error {
	if format == FormatJSON {
		return renderJSON(w, map[string]interface{}{
			"report":    r,
			"canonical": r.String(),
		})
	}
	renderFieldTable(w, reportRows(r))
	return nil
}

// Observation writes a fetched observation including derived conditions
func Observation(w io.Writer, format string, obs *weather.Observation) error {
	if format == FormatJSON {
		return renderJSON(w, obs)
	}

	rows := [][]string{
		{"Raw", obs.Raw},
		{"Fetched", obs.FetchedAt.Format("2006-01-02 15:04:05Z")},
	}
	if obs.Stale {
		rows = append(rows, []string{"Stale", "yes"})
	}
	if obs.Report == nil {
		rows = append(rows, []string{"Decode error", obs.DecodeError})
		renderFieldTable(w, rows)
		return nil
	}

	rows = append(rows, reportRows(*obs.Report)...)
	if obs.Derived != nil {
		rows = append(rows, derivedRows(obs.Derived)...)
	}
	renderFieldTable(w, rows)
	return nil
}

// DecodeFailure writes a failed decode
func DecodeFailure(w io.Writer, format string, raw string, err error) error {
	if format == FormatJSON {
		return renderJSON(w, map[string]interface{}{
			"raw":   raw,
			"error": err.Error(),
		})
	}
	renderFieldTable(w, [][]string{
		{"Raw", raw},
		{"Error", err.Error()},
	})
	return nil
}

func renderJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderFieldTable(w io.Writer, rows [][]string) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"FIELD", "VALUE"})
	tw.SetBorder(true)
	tw.SetRowLine(false)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetColWidth(80)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()
}

func reportRows(r metar.Report) [][]string {
	automated := "no"
	if r.AutomatedReport {
		automated = "yes"
	}

	rows := [][]string{
		{"Station", r.Station},
		{"Observation time", r.ObservationTime},
		{"Automated", automated},
		{"Wind", formatWind(r.Wind)},
		{"Visibility", formatVisibility(r.Visibility)},
		{"Clouds", formatClouds(r.Clouds)},
		{"Temperature", fmt.Sprintf("%d °C", r.Temperature)},
		{"Dewpoint", fmt.Sprintf("%d °C", r.Dewpoint)},
	}
	if r.Altimeter != nil {
		rows = append(rows, []string{"Altimeter", fmt.Sprintf("%.2f inHg", float64(*r.Altimeter)/100)})
	}
	if r.Remarks != nil {
		if r.Remarks.StationType != nil {
			rows = append(rows, []string{"Station type", *r.Remarks.StationType})
		}
		if tb := r.Remarks.TempBreakdown; tb != nil {
			rows = append(rows, []string{"Precise temp/dew", fmt.Sprintf("%.1f / %.1f °C", tb.Temperature, tb.Dewpoint)})
		}
	}
	rows = append(rows, []string{"Canonical", r.String()})
	return rows
}

func derivedRows(c *weather.Conditions) [][]string {
	rows := [][]string{
		{"Relative humidity", fmt.Sprintf("%.0f %%", c.RelativeHumidity)},
		{"Wind U/V", fmt.Sprintf("%.1f / %.1f m/s", c.WindU, c.WindV)},
	}
	if c.PressureAltitudeFt != nil {
		rows = append(rows, []string{"Pressure altitude", fmt.Sprintf("%.0f ft", *c.PressureAltitudeFt)})
	}
	if c.DensityAltitudeFt != nil {
		rows = append(rows, []string{"Density altitude", fmt.Sprintf("%.0f ft", *c.DensityAltitudeFt)})
	}
	if c.MagneticVariation != nil {
		rows = append(rows, []string{"Magnetic variation", formatVariation(*c.MagneticVariation)})
	}
	if c.WindDirectionMagnetic != nil {
		rows = append(rows, []string{"Wind (magnetic)", fmt.Sprintf("%03.0f°", *c.WindDirectionMagnetic)})
	}
	return rows
}

func formatWind(w metar.Wind) string {
	if w.Speed == 0 && w.Direction == 0 {
		return "calm"
	}
	s := fmt.Sprintf("%03d° at %d kt", w.Direction, w.Speed)
	if w.GustSpeed != nil {
		s += fmt.Sprintf(", gusting %d kt", *w.GustSpeed)
	}
	return s
}

func formatVisibility(v metar.Visibility) string {
	return strings.TrimSuffix(v.String(), string(v.Unit)) + " " + unitName(v.Unit)
}

func unitName(u metar.VisibilityUnit) string {
	if u == metar.VisibilityStatuteMiles {
		return "statute miles"
	}
	return string(u)
}

func formatClouds(c metar.Clouds) string {
	if c.IsClear() {
		return "clear"
	}
	parts := make([]string, 0, len(c.Layers))
	for _, l := range c.Layers {
		parts = append(parts, string(l.Kind)+" at "+strconv.FormatUint(uint64(l.Height), 10)+" ft")
	}
	return strings.Join(parts, ", ")
}

func formatVariation(d float64) string {
	if d < 0 {
		return fmt.Sprintf("%.1f° W", -d)
	}
	return fmt.Sprintf("%.1f° E", d)
}
