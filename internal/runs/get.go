package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dyluth/lsq/internal/smith"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Reader is the part of the API client Get needs.
type Reader interface {
	ReadRun(ctx context.Context, id string) (*smith.Run, error)
}

// ValidateRunID checks that id is a full run UUID.
func ValidateRunID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: run ID %q is not a UUID", ErrInvalidArgument, id)
	}
	return nil
}

// ParseFields splits a --fields value. Empty input means all fields.
func ParseFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// Get fetches one run and writes it to w. When fields is non-empty only those
// fields are kept; id and name are always included for context.
func Get(ctx context.Context, r Reader, id string, fields []string, format Format, w io.Writer) error {
	if err := ValidateRunID(id); err != nil {
		return err
	}

	run, err := r.ReadRun(ctx, id)
	if err != nil {
		return err
	}

	data, err := toMap(run)
	if err != nil {
		return err
	}
	data = prune(data, fields)

	switch format {
	case FormatJSON, FormatJSONL:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal run to JSON: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", out)
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return fmt.Errorf("failed to marshal run to YAML: %w", err)
		}
		return enc.Close()
	default:
		return writeRunDetails(w, data)
	}
}

// toMap converts a run to its JSON field map. The raw payload is preferred so
// fields the typed view does not know about survive.
func toMap(run *smith.Run) (map[string]interface{}, error) {
	raw := []byte(run.Raw)
	if len(raw) == 0 {
		var err error
		raw, err = json.Marshal(run)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal run: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode run: %w", err)
	}
	return m, nil
}

func prune(data map[string]interface{}, fields []string) map[string]interface{} {
	if len(fields) == 0 {
		return data
	}
	keep := map[string]bool{"id": true, "name": true}
	for _, f := range fields {
		keep[f] = true
	}
	out := make(map[string]interface{}, len(keep))
	for k, v := range data {
		if keep[k] {
			out[k] = v
		}
	}
	return out
}

// writeRunDetails prints id and name first, then every other field in
// alphabetical order. Nested values are pretty-printed JSON.
func writeRunDetails(w io.Writer, data map[string]interface{}) error {
	fmt.Fprintf(w, "Run ID: %v\n", data["id"])
	fmt.Fprintf(w, "Name: %v\n", data["name"])

	keys := make([]string, 0, len(data))
	for k := range data {
		if k != "id" && k != "name" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "\n%s:\n", k)
		switch v := data[k].(type) {
		case map[string]interface{}, []interface{}:
			out, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to format field %s: %w", k, err)
			}
			fmt.Fprintf(w, "%s\n", out)
		default:
			fmt.Fprintf(w, "%v\n", v)
		}
	}
	return nil
}
