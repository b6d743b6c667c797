package runs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/dyluth/lsq/internal/smith"
	"github.com/rs/zerolog/log"
)

// ErrInvalidArgument marks user input rejected before any request is sent.
var ErrInvalidArgument = errors.New("invalid argument")

// clientFilterFetchLimit is the minimum requested from the API when runs are
// filtered locally, so the user's limit applies after filtering.
const clientFilterFetchLimit = 100

// Querier is the part of the API client List needs.
type Querier interface {
	ResolveProjectID(ctx context.Context, name string) (string, error)
	QueryRuns(ctx context.Context, q smith.RunQuery) ([]smith.Run, error)
}

// ListOptions controls List. Query carries the server-side parameters,
// including the composed FQL filter; ProjectIDs and Limit are set by List.
type ListOptions struct {
	Project   string
	Limit     int
	Query     smith.RunQuery
	NameRegex string // Client-side regex on run name, empty = no filter
	SortBy    string // name, status, latency or start_time; "-" prefix for descending
}

// sortKeys maps --sort-by fields to less functions.
var sortKeys = map[string]func(a, b *smith.Run) bool{
	"name": func(a, b *smith.Run) bool {
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	},
	"status": func(a, b *smith.Run) bool {
		return a.Status < b.Status
	},
	"latency": func(a, b *smith.Run) bool {
		la, _ := a.Latency()
		lb, _ := b.Latency()
		return la < lb
	},
	"start_time": func(a, b *smith.Run) bool {
		return a.StartTime.Before(b.StartTime.Time)
	},
}

// List queries runs for a project and writes them to w.
// Regex filtering and sorting happen client side, then the limit is applied.
// Returns the number of runs written.
func List(ctx context.Context, q Querier, opts ListOptions, format Format, w io.Writer) (int, error) {
	var nameRe *regexp.Regexp
	if opts.NameRegex != "" {
		var err error
		nameRe, err = regexp.Compile(opts.NameRegex)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid --name-regex %q: %v", ErrInvalidArgument, opts.NameRegex, err)
		}
	}

	projectID, err := q.ResolveProjectID(ctx, opts.Project)
	if err != nil {
		return 0, err
	}

	query := opts.Query
	query.ProjectIDs = []string{projectID}
	query.Limit = opts.Limit
	if nameRe != nil {
		query.Limit = max(opts.Limit, clientFilterFetchLimit)
	}

	found, err := q.QueryRuns(ctx, query)
	if err != nil {
		return 0, err
	}

	found = FilterByName(found, nameRe)
	found = Sort(found, opts.SortBy)
	if opts.Limit > 0 && len(found) > opts.Limit {
		found = found[:opts.Limit]
	}

	title := fmt.Sprintf("Runs (%s)", opts.Project)
	if err := Write(w, found, format, title); err != nil {
		return 0, err
	}
	return len(found), nil
}

// FilterByName keeps runs whose name matches re. A nil re keeps everything.
func FilterByName(in []smith.Run, re *regexp.Regexp) []smith.Run {
	if re == nil {
		return in
	}
	out := make([]smith.Run, 0, len(in))
	for _, r := range in {
		if r.Name != "" && re.MatchString(r.Name) {
			out = append(out, r)
		}
	}
	return out
}

// SortFields lists the accepted --sort-by fields.
const SortFields = "name, status, latency, start_time"

// IsSortField reports whether spec names a known sort field, with or without
// the "-" prefix.
func IsSortField(spec string) bool {
	_, ok := sortKeys[strings.TrimPrefix(spec, "-")]
	return ok
}

// Sort orders runs by a sort spec such as "latency" or "-start_time".
// Unknown fields leave the order unchanged.
func Sort(in []smith.Run, spec string) []smith.Run {
	if spec == "" {
		return in
	}

	desc := strings.HasPrefix(spec, "-")
	field := strings.TrimPrefix(spec, "-")

	less, ok := sortKeys[field]
	if !ok {
		log.Debug().Str("field", field).Msg("unknown sort field, order unchanged")
		return in
	}

	out := make([]smith.Run, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return less(&out[j], &out[i])
		}
		return less(&out[i], &out[j])
	})
	return out
}
