package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/lsq/internal/printer"
	"github.com/dyluth/lsq/internal/runs"
	"github.com/dyluth/lsq/internal/smith"
	"github.com/dyluth/lsq/internal/timespec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProjectID = "7b0c3a4e-1d2f-4e5a-9b6c-0d1e2f3a4b5c"

var testNow = time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)

type result struct {
	stdout string
	stderr string
	err    error
}

// isolate points config and env at an empty environment.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	for _, key := range []string{"ENDPOINT", "API_KEY", "PROJECT", "OUTPUT", "TIMEOUT", "MAX_RETRIES"} {
		t.Setenv("LANGSMITH_"+key, "")
		os.Unsetenv("LANGSMITH_" + key)
	}
}

// run executes the command tree with a fixed clock and captured output.
func run(t *testing.T, args ...string) result {
	t.Helper()

	prevNow := nowFunc
	nowFunc = func() time.Time { return testNow }
	errOut := new(bytes.Buffer)
	prevOut := printer.SetOutput(errOut)
	t.Cleanup(func() {
		nowFunc = prevNow
		printer.SetOutput(prevOut)
	})

	stdout := new(bytes.Buffer)
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(errOut)

	err := root.Execute()
	return result{stdout: stdout.String(), stderr: errOut.String(), err: err}
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	isolate(t)
	res := run(t)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Usage:")
	assert.Contains(t, res.stdout, "runs")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	isolate(t)
	res := run(t, "runs", "list", "--unknown-flag", "value")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown flag")
	assert.Equal(t, ExitInvalidInput, ExitCode(res.err))
}

func TestRunsList_DryRun(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "no filters",
			args: nil,
			want: "",
		},
		{
			name: "tag slow and name pattern",
			args: []string{"--tag", "production", "--slow", "--name-pattern", "*auth*"},
			want: `and(has(tags, "production"), search("auth"), gt(latency, "5s"))`,
		},
		{
			name: "flag order does not matter",
			args: []string{"--name-pattern", "*auth*", "--slow", "--tag", "production"},
			want: `and(has(tags, "production"), search("auth"), gt(latency, "5s"))`,
		},
		{
			name: "repeated tags",
			args: []string{"--tag", "a", "--tag", "b"},
			want: `and(has(tags, "a"), has(tags, "b"))`,
		},
		{
			name: "last measured from now",
			args: []string{"--last", "24h"},
			want: `gt(start_time, "2024-01-14T12:30:00Z")`,
		},
		{
			name: "since absolute",
			args: []string{"--since", "2024-01-14T10:00:00Z"},
			want: `gt(start_time, "2024-01-14T10:00:00Z")`,
		},
		{
			name: "today",
			args: []string{"--today"},
			want: `gt(start_time, "2024-01-15T00:00:00Z")`,
		},
		{
			name: "raw filter goes last",
			args: []string{"--filter", `eq(run_type, "llm")`, "--min-latency", "2s"},
			want: `and(gt(latency, "2s"), eq(run_type, "llm"))`,
		},
		{
			name: "empty tag is passed through",
			args: []string{"--tag", ""},
			want: `has(tags, "")`,
		},
		{
			name: "fractional day renders exactly",
			args: []string{"--min-latency", "0.7d"},
			want: `gt(latency, "60480s")`,
		},
		{
			name: "slow equals min latency 5000ms",
			args: []string{"--min-latency", "5000ms"},
			want: `gt(latency, "5s")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, append([]string{"runs", "list", "--dry-run"}, tt.args...)...)
			require.NoError(t, res.err)
			assert.Equal(t, tt.want+"\n", res.stdout)
		})
	}
}

func TestRunsList_DryRunJSON(t *testing.T) {
	isolate(t)
	res := run(t, "--json", "runs", "list", "--dry-run", "--tag", "prod")
	require.NoError(t, res.err)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, `has(tags, "prod")`, out["filter"])
}

func TestRunsList_InvalidValues(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		args   []string
		option string
	}{
		{"bad min latency", []string{"--min-latency", "fast"}, "--min-latency"},
		{"negative max latency", []string{"--max-latency", "-5s"}, "--max-latency"},
		{"bad last", []string{"--last", "yesterday"}, "--last"},
		{"bad since", []string{"--since", "not-a-date"}, "--since"},
		{"last out of range", []string{"--last", "300000d"}, "--last"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Not even a dry run: the error must come before any request
			res := run(t, append([]string{"runs", "list"}, tt.args...)...)
			require.Error(t, res.err)
			assert.True(t, timespec.IsInvalidInput(res.err))
			assert.Equal(t, ExitInvalidInput, ExitCode(res.err))
			assert.Contains(t, res.stderr, tt.option)
			assert.Empty(t, res.stdout)
		})
	}
}

func TestRunsList_StatusFlags(t *testing.T) {
	tests := []struct {
		name    string
		opts    runsListOptions
		want    *bool
		wantErr bool
	}{
		{name: "none", opts: runsListOptions{}},
		{name: "failed", opts: runsListOptions{failed: true}, want: boolPtr(true)},
		{name: "succeeded", opts: runsListOptions{succeeded: true}, want: boolPtr(false)},
		{name: "status error", opts: runsListOptions{status: "error"}, want: boolPtr(true)},
		{name: "status agrees with failed", opts: runsListOptions{status: "Error", failed: true}, want: boolPtr(true)},
		{name: "conflict", opts: runsListOptions{failed: true, succeeded: true}, wantErr: true},
		{name: "unknown status", opts: runsListOptions{status: "pending"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := statusFilter(&tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, runs.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunsSearch_DryRun(t *testing.T) {
	isolate(t)
	res := run(t, "runs", "search", "timeout", "--input-contains", "order", "--dry-run")
	require.NoError(t, res.err)
	assert.Equal(t, `and(search("timeout"), search("order"))`+"\n", res.stdout)

	res = run(t, "runs", "search", "  ", "--dry-run")
	require.Error(t, res.err)
	assert.Equal(t, ExitInvalidInput, ExitCode(res.err))
}

// fakeServer serves a project lookup and one page of runs.
type fakeServer struct {
	*httptest.Server
	lastQuery map[string]interface{}
	lastStats map[string]interface{}
	status    int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{status: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		if name := r.URL.Query().Get("name"); name != "" {
			fmt.Fprintf(w, `[{"id": %q, "name": %q}]`, testProjectID, name)
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		fmt.Fprintf(w, `[{"id": %q, "name": "default", "run_count": 7}, {"id": "p2", "name": "staging"}]`, testProjectID)
	})
	mux.HandleFunc("/api/v1/runs/stats", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&fs.lastStats))
		io.WriteString(w, `{"run_count": 2, "error_rate": 0.5}`)
	})
	mux.HandleFunc("/api/v1/runs/query", func(w http.ResponseWriter, r *http.Request) {
		if fs.status != http.StatusOK {
			w.WriteHeader(fs.status)
			io.WriteString(w, `{"detail": "invalid filter expression"}`)
			return
		}
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &fs.lastQuery))
		io.WriteString(w, `{"runs": [
			{"id": "550e8400-e29b-41d4-a716-446655440000", "name": "auth-check", "status": "success",
			 "start_time": "2024-01-15T10:00:00", "end_time": "2024-01-15T10:00:02", "tags": ["production"]},
			{"id": "550e8400-e29b-41d4-a716-446655440001", "name": "billing", "status": "error",
			 "start_time": "2024-01-15T11:00:00", "end_time": "2024-01-15T11:00:09"}
		]}`)
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)

	t.Setenv("LANGSMITH_ENDPOINT", fs.URL)
	t.Setenv("LANGSMITH_API_KEY", "test-key")
	t.Setenv("LANGSMITH_MAX_RETRIES", "0")
	return fs
}

func TestRunsList_EndToEnd(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)

	res := run(t, "runs", "list", "--tag", "production", "--slow", "--failed", "--is-root", "--limit", "5", "--format", "json")
	require.NoError(t, res.err, res.stderr)

	assert.Equal(t, `and(has(tags, "production"), gt(latency, "5s"))`, fs.lastQuery["filter"])
	assert.Equal(t, []interface{}{testProjectID}, fs.lastQuery["session"])
	assert.Equal(t, true, fs.lastQuery["error"])
	assert.Equal(t, true, fs.lastQuery["is_root"])
	assert.EqualValues(t, 5, fs.lastQuery["limit"])

	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "auth-check", out[0]["name"])
}

func TestRunsList_EndToEndTable(t *testing.T) {
	isolate(t)
	newFakeServer(t)

	res := run(t, "runs", "list", "--sort-by", "-latency")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Runs (default)")
	assert.Less(t, strings.Index(res.stdout, "billing"), strings.Index(res.stdout, "auth-check"))
	assert.Contains(t, res.stdout, "2 runs found")
}

func TestRunsList_UnknownSortFieldWarns(t *testing.T) {
	isolate(t)
	newFakeServer(t)

	res := run(t, "runs", "list", "--sort-by", "cost")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stderr, `unknown sort field "cost"`)
	assert.Contains(t, res.stdout, "2 runs found")
}

func TestRunsStats_EndToEnd(t *testing.T) {
	isolate(t)
	fs := newFakeServer(t)

	res := run(t, "--json", "runs", "stats", "--tag", "prod", "--last", "1h")
	require.NoError(t, res.err, res.stderr)

	assert.Equal(t, []interface{}{testProjectID}, fs.lastStats["session"])
	assert.Equal(t, `and(has(tags, "prod"), gt(start_time, "2024-01-15T11:30:00Z"))`, fs.lastStats["filter"])

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
	assert.Equal(t, 0.5, out["error_rate"])

	res = run(t, "runs", "stats")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Stats: default")
	assert.Contains(t, res.stdout, "Error Rate")
}

func TestProjectsList_EndToEnd(t *testing.T) {
	isolate(t)
	newFakeServer(t)

	res := run(t, "projects", "list", "--limit", "2")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "default")
	assert.Contains(t, res.stdout, "staging")
	assert.Contains(t, res.stdout, "7")

	res = run(t, "projects", "list", "--limit", "2", "--format", "csv")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "id,name,run_count,description\n"+testProjectID+",default,7,\np2,staging,,\n", res.stdout)
}

func TestRunsList_RemoteErrors(t *testing.T) {
	t.Run("rejected filter", func(t *testing.T) {
		isolate(t)
		fs := newFakeServer(t)
		fs.status = http.StatusBadRequest

		res := run(t, "runs", "list", "--filter", "bogus(")
		require.Error(t, res.err)
		assert.Equal(t, ExitRemote, ExitCode(res.err))
		assert.Contains(t, res.stderr, "invalid filter expression")
	})

	t.Run("bad api key", func(t *testing.T) {
		isolate(t)
		newFakeServer(t)
		t.Setenv("LANGSMITH_API_KEY", "wrong")

		res := run(t, "runs", "list")
		require.Error(t, res.err)
		assert.Equal(t, ExitAuth, ExitCode(res.err))
		assert.Contains(t, res.stderr, "LANGSMITH_API_KEY")
	})

	t.Run("missing api key", func(t *testing.T) {
		isolate(t)
		res := run(t, "runs", "list")
		require.Error(t, res.err)
		assert.Equal(t, ExitAuth, ExitCode(res.err))
	})
}

func TestRunsGetAndOpen(t *testing.T) {
	isolate(t)

	res := run(t, "runs", "get", "not-a-uuid")
	require.Error(t, res.err)
	assert.Equal(t, ExitInvalidInput, ExitCode(res.err))

	res = run(t, "runs", "open", "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, res.err)
	assert.Equal(t, "https://smith.langchain.com/r/550e8400-e29b-41d4-a716-446655440000\n", res.stdout)
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("project: my-app\napi_key: secret-123456\n"), 0o600))

	res := run(t, "--config", path, "config", "show")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "project: my-app")
	assert.Contains(t, res.stdout, "****3456")
	assert.NotContains(t, res.stdout, "secret-123456")
}

func TestExitCode(t *testing.T) {
	parseErr := timespec.ForOption(&timespec.ParseError{Text: "x", Kind: timespec.ErrInvalidDuration}, "--last")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitError},
		{"parse error", parseErr, ExitInvalidInput},
		{"displayed parse error", &printer.DisplayedError{Title: "invalid", Cause: parseErr}, ExitInvalidInput},
		{"invalid argument", fmt.Errorf("%w: bad regex", runs.ErrInvalidArgument), ExitInvalidInput},
		{"usage", &usageError{err: errors.New("unknown flag")}, ExitInvalidInput},
		{"auth", &smith.AuthError{Message: "no key"}, ExitAuth},
		{"api", &smith.APIError{StatusCode: 500}, ExitRemote},
		{"not found", &smith.NotFoundError{Kind: "project", Name: "x"}, ExitRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func boolPtr(b bool) *bool { return &b }
