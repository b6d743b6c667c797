package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	projects      []smith.Project
	err           error
	limit, offset int
}

func (f *fakeLister) ListProjects(ctx context.Context, limit, offset int) ([]smith.Project, error) {
	f.limit, f.offset = limit, offset
	return f.projects, f.err
}

func intPtr(n int) *int { return &n }

func sampleProjects() []smith.Project {
	return []smith.Project{
		{ID: "p1", Name: "default", RunCount: intPtr(42)},
		{ID: "p2", Name: "staging"},
	}
}

func TestList_Table(t *testing.T) {
	l := &fakeLister{projects: sampleProjects()}

	var buf bytes.Buffer
	n, err := List(context.Background(), l, 20, 40, runs.FormatTable, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 20, l.limit)
	assert.Equal(t, 40, l.offset)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "Projects\n"))
	assert.Contains(t, out, "default")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "staging")
}

func TestList_Empty(t *testing.T) {
	var buf bytes.Buffer
	_, err := List(context.Background(), &fakeLister{}, 20, 0, runs.FormatTable, &buf)
	require.NoError(t, err)
	assert.Equal(t, "No projects found.\n", buf.String())

	buf.Reset()
	_, err = List(context.Background(), &fakeLister{}, 20, 0, runs.FormatJSON, &buf)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", buf.String())
}

func TestList_Formats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := List(context.Background(), &fakeLister{projects: sampleProjects()}, 0, 0, runs.FormatJSON, &buf)
		require.NoError(t, err)

		var got []map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, 42.0, got[0]["run_count"])
		assert.NotContains(t, got[1], "run_count")
	})

	t.Run("jsonl", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := List(context.Background(), &fakeLister{projects: sampleProjects()}, 0, 0, runs.FormatJSONL, &buf)
		require.NoError(t, err)
		assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 2)
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := List(context.Background(), &fakeLister{projects: sampleProjects()}, 0, 0, runs.FormatCSV, &buf)
		require.NoError(t, err)
		assert.Equal(t, "id,name,run_count,description\np1,default,42,\np2,staging,,\n", buf.String())
	})
}

func TestList_Errors(t *testing.T) {
	_, err := List(context.Background(), &fakeLister{}, -1, 0, runs.FormatTable, &bytes.Buffer{})
	assert.True(t, errors.Is(err, runs.ErrInvalidArgument))

	apiErr := &smith.APIError{StatusCode: 500}
	_, err = List(context.Background(), &fakeLister{err: apiErr}, 20, 0, runs.FormatTable, &bytes.Buffer{})
	assert.Same(t, apiErr, err)
}
