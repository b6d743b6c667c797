// Package projects lists tracing projects.
package projects

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Lister is the part of the API client List needs.
type Lister interface {
	ListProjects(ctx context.Context, limit, offset int) ([]smith.Project, error)
}

// List fetches one page of projects and writes it to w.
// Returns the number of projects written.
func List(ctx context.Context, l Lister, limit, offset int, format runs.Format, w io.Writer) (int, error) {
	if limit < 0 || offset < 0 {
		return 0, fmt.Errorf("%w: --limit and --offset must not be negative", runs.ErrInvalidArgument)
	}

	found, err := l.ListProjects(ctx, limit, offset)
	if err != nil {
		return 0, err
	}
	if found == nil {
		found = []smith.Project{}
	}

	switch format {
	case runs.FormatJSON:
		data, err := json.Marshal(found)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal projects to JSON: %w", err)
		}
		fmt.Fprintf(w, "%s\n", data)
	case runs.FormatJSONL:
		for i := range found {
			data, err := json.Marshal(&found[i])
			if err != nil {
				return 0, fmt.Errorf("failed to marshal project to JSON: %w", err)
			}
			fmt.Fprintf(w, "%s\n", data)
		}
	case runs.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(found); err != nil {
			return 0, fmt.Errorf("failed to marshal projects to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return 0, err
		}
	case runs.FormatCSV:
		if err := formatCSV(w, found); err != nil {
			return 0, err
		}
	default:
		if err := formatTable(w, found); err != nil {
			return 0, err
		}
	}
	return len(found), nil
}

func runCount(p *smith.Project) string {
	if p.RunCount == nil {
		return "-"
	}
	return strconv.Itoa(*p.RunCount)
}

func formatTable(w io.Writer, found []smith.Project) error {
	if len(found) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}

	fmt.Fprintf(w, "Projects\n\n")

	table := tablewriter.NewWriter(w)
	table.Header("Name", "ID", "Runs")
	for i := range found {
		p := &found[i]
		if err := table.Append([]string{p.Name, p.ID, runCount(p)}); err != nil {
			return fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func formatCSV(w io.Writer, found []smith.Project) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "run_count", "description"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range found {
		p := &found[i]
		count := ""
		if p.RunCount != nil {
			count = strconv.Itoa(*p.RunCount)
		}
		if err := cw.Write([]string{p.ID, p.Name, count, p.Description}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
