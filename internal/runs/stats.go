package runs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dyluth/lsq/internal/smith"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// StatsSource is the part of the API client Stats needs.
type StatsSource interface {
	ResolveProjectID(ctx context.Context, name string) (string, error)
	RunStats(ctx context.Context, q smith.RunQuery) (map[string]interface{}, error)
}

// Stats fetches aggregate metrics for the runs of a project matching query
// and writes them to w. Metrics are written in key order.
func Stats(ctx context.Context, src StatsSource, project string, query smith.RunQuery, format Format, w io.Writer) error {
	projectID, err := src.ResolveProjectID(ctx, project)
	if err != nil {
		return err
	}
	query.ProjectIDs = []string{projectID}
	query.Limit = 0

	stats, err := src.RunStats(ctx, query)
	if err != nil {
		return err
	}
	if stats == nil {
		stats = map[string]interface{}{}
	}

	switch format {
	case FormatJSON, FormatJSONL:
		data, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("failed to marshal stats to JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(stats); err != nil {
			return fmt.Errorf("failed to marshal stats to YAML: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return formatStatsCSV(w, stats)
	default:
		return formatStatsTable(w, stats, fmt.Sprintf("Stats: %s", project))
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatStatsTable(w io.Writer, stats map[string]interface{}, title string) error {
	if len(stats) == 0 {
		fmt.Fprintln(w, "No stats available.")
		return nil
	}

	fmt.Fprintf(w, "%s\n\n", title)

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	for _, k := range sortedKeys(stats) {
		if err := table.Append([]string{metricLabel(k), statValue(stats[k])}); err != nil {
			return fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func formatStatsCSV(w io.Writer, stats map[string]interface{}) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, k := range sortedKeys(stats) {
		if err := cw.Write([]string{k, statValue(stats[k])}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// metricLabel turns an API key such as "error_rate" into "Error Rate".
func metricLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

// statValue renders one metric. Missing values print as "-" and nested
// values as compact JSON.
func statValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case json.Number:
		return v.String()
	case string:
		return v
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	default:
		return fmt.Sprint(v)
	}
}
