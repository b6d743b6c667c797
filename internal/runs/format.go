package runs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/lsq/internal/smith"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format specifies how run output is rendered.
type Format string

const (
	// FormatTable is a human-readable table with truncated names
	FormatTable Format = "table"

	// FormatJSON writes a single JSON array
	FormatJSON Format = "json"

	// FormatJSONL writes one JSON object per line
	FormatJSONL Format = "jsonl"

	// FormatCSV writes a header row followed by one row per run
	FormatCSV Format = "csv"

	// FormatYAML writes a YAML sequence
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatJSONL, FormatCSV, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown format %q (valid: table, json, jsonl, csv, yaml)", ErrInvalidArgument, s)
}

// csvColumns are the fields written by FormatCSV, in order.
var csvColumns = []string{"id", "name", "run_type", "status", "latency", "start_time", "total_tokens", "tags"}

// Write renders runs in the given format.
func Write(w io.Writer, runs []smith.Run, format Format, title string) error {
	switch format {
	case FormatTable:
		return FormatRunTable(w, runs, title)
	case FormatJSON:
		return FormatRunJSON(w, runs)
	case FormatJSONL:
		return FormatRunJSONL(w, runs)
	case FormatCSV:
		return FormatRunCSV(w, runs)
	case FormatYAML:
		return FormatRunYAML(w, runs)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// FormatRunTable writes runs as a table with ID, NAME, STATUS, LATENCY and START columns.
func FormatRunTable(w io.Writer, runs []smith.Run, title string) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return nil
	}

	if title != "" {
		fmt.Fprintf(w, "%s\n\n", title)
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Name", "Status", "Latency", "Start")
	for i := range runs {
		r := &runs[i]
		if err := table.Append([]string{
			r.ID,
			formatName(r.Name),
			formatStatus(r.Status),
			formatLatency(r),
			formatStart(r.StartTime),
		}); err != nil {
			return fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	noun := "run"
	if len(runs) != 1 {
		noun = "runs"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(runs), noun)
	return nil
}

// FormatRunJSON writes runs as one JSON array. An empty list is written as [].
func FormatRunJSON(w io.Writer, runs []smith.Run) error {
	if runs == nil {
		runs = []smith.Run{}
	}
	data, err := json.Marshal(runs)
	if err != nil {
		return fmt.Errorf("failed to marshal runs to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}

// FormatRunJSONL writes runs as line-delimited JSON.
func FormatRunJSONL(w io.Writer, runs []smith.Run) error {
	for i := range runs {
		data, err := json.Marshal(&runs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal run to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatRunCSV writes runs as CSV. Nothing is written for an empty list.
func FormatRunCSV(w io.Writer, runs []smith.Run) error {
	if len(runs) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range runs {
		r := &runs[i]
		latency := ""
		if l, ok := r.Latency(); ok {
			latency = strconv.FormatFloat(l, 'f', 3, 64)
		}
		start := ""
		if !r.StartTime.IsZero() {
			start = r.StartTime.UTC().Format(time.RFC3339Nano)
		}
		record := []string{
			r.ID,
			r.Name,
			r.RunType,
			r.Status,
			latency,
			start,
			strconv.Itoa(r.TotalTokens),
			strings.Join(r.Tags, ";"),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatRunYAML writes runs as a YAML sequence.
func FormatRunYAML(w io.Writer, runs []smith.Run) error {
	if runs == nil {
		runs = []smith.Run{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(runs); err != nil {
		return fmt.Errorf("failed to marshal runs to YAML: %w", err)
	}
	return enc.Close()
}

// formatName truncates long run names for table display.
func formatName(name string) string {
	if name == "" {
		return "Unknown"
	}
	if runes := []rune(name); len(runes) > 40 {
		return string(runes[:37]) + "..."
	}
	return name
}

// formatStatus shows "-" for runs without a status.
func formatStatus(status string) string {
	if status == "" {
		return "-"
	}
	return status
}

// formatLatency shows seconds with two decimals, e.g. "2.50s".
func formatLatency(r *smith.Run) string {
	l, ok := r.Latency()
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2fs", l)
}

// formatStart formats the start time in UTC to the second.
func formatStart(ts smith.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format("2006-01-02 15:04:05")
}
