package smith

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dyluth/lsq/internal/timespec"
)

// Timestamp decodes the service's ISO-8601 timestamps, which may omit the
// zone designator (those are UTC).
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := timespec.ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// MarshalYAML renders the timestamp as RFC3339 text.
func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

// Run is a single traced operation as returned by the runs API.
type Run struct {
	ID               string                 `json:"id" yaml:"id"`
	Name             string                 `json:"name" yaml:"name"`
	RunType          string                 `json:"run_type" yaml:"run_type"`
	Status           string                 `json:"status" yaml:"status"`
	Error            *string                `json:"error,omitempty" yaml:"error,omitempty"`
	StartTime        Timestamp              `json:"start_time" yaml:"start_time"`
	EndTime          *Timestamp             `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Tags             []string               `json:"tags,omitempty" yaml:"tags,omitempty"`
	TraceID          string                 `json:"trace_id,omitempty" yaml:"trace_id,omitempty"`
	ParentRunID      *string                `json:"parent_run_id,omitempty" yaml:"parent_run_id,omitempty"`
	SessionID        string                 `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	TotalTokens      int                    `json:"total_tokens,omitempty" yaml:"total_tokens,omitempty"`
	PromptTokens     int                    `json:"prompt_tokens,omitempty" yaml:"prompt_tokens,omitempty"`
	CompletionTokens int                    `json:"completion_tokens,omitempty" yaml:"completion_tokens,omitempty"`
	Inputs           map[string]interface{} `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs          map[string]interface{} `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Raw is the payload as received by ReadRun, including fields not mapped above.
	Raw json.RawMessage `json:"-" yaml:"-"`
}

// Latency returns the run duration in seconds, and false if the run has not finished.
func (r *Run) Latency() (float64, bool) {
	if r.EndTime == nil || r.EndTime.IsZero() || r.StartTime.IsZero() {
		return 0, false
	}
	return r.EndTime.Sub(r.StartTime.Time).Seconds(), true
}

// Project is a tracing project (called a session by the API).
type Project struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	RunCount    *int       `json:"run_count,omitempty" yaml:"run_count,omitempty"`
	StartTime   *Timestamp `json:"start_time,omitempty" yaml:"start_time,omitempty"`
}

// RunQuery holds the parameters of a runs query. Filter is an FQL expression;
// empty means no filter. Pointer fields are omitted when nil.
type RunQuery struct {
	ProjectIDs         []string `json:"session,omitempty"`
	Filter             string   `json:"filter,omitempty"`
	TraceFilter        string   `json:"trace_filter,omitempty"`
	TreeFilter         string   `json:"tree_filter,omitempty"`
	IsRoot             *bool    `json:"is_root,omitempty"`
	Error              *bool    `json:"error,omitempty"`
	RunType            string   `json:"run_type,omitempty"`
	TraceID            string   `json:"trace,omitempty"`
	ReferenceExampleID []string `json:"reference_example,omitempty"`
	Limit              int      `json:"limit,omitempty"`
}

type queryRunsResponse struct {
	Runs []Run `json:"runs"`
}
