package filter

import (
	"strings"
	"time"

	"github.com/dyluth/lsq/internal/fql"
	"github.com/dyluth/lsq/internal/timespec"
)

// SlowThreshold is the latency above which --slow considers a run slow.
var SlowThreshold = timespec.MustDuration("5s")

// RecentWindow is how far back --recent looks.
const RecentWindow = time.Hour

// Options defines the filter flags of run listing commands.
// All options are ANDed together - a run must match ALL of them.
// Zero values mean "no filter" for that option.
type Options struct {
	Tags        []string // has(tags, t) per tag, in the order given
	NamePattern string   // Shell-style wildcard pattern, reduced to a search term
	Model       string   // Model name, matched by full-text search
	SearchTerms []string // Free-text search terms

	Slow   bool // latency > SlowThreshold
	Recent bool // started within RecentWindow
	Today  bool // started since midnight

	MinLatency string // Duration literal, e.g. "2s"
	MaxLatency string // Duration literal
	Last       string // Duration literal, relative to now
	Since      string // Duration literal or ISO-8601 timestamp

	Raw string // Caller-written FQL, passed through verbatim
}

// HasFilters returns true if any option would contribute to the expression.
func (o *Options) HasFilters() bool {
	return len(o.Tags) > 0 ||
		searchTerm(o.NamePattern) != "" ||
		o.Model != "" ||
		len(o.SearchTerms) > 0 ||
		o.Slow || o.Recent || o.Today ||
		o.MinLatency != "" ||
		o.MaxLatency != "" ||
		o.Last != "" ||
		o.Since != "" ||
		strings.TrimSpace(o.Raw) != ""
}

// Build returns one predicate per active option, in canonical category order:
// tags, name pattern, model, search terms, slow, recent, today, min latency,
// max latency, last, since. The raw expression is not included; pass it to
// fql.Compose separately so it always ends up last.
//
// now is the single instant every relative option is measured against.
func (o *Options) Build(now time.Time) ([]fql.Predicate, error) {
	var preds []fql.Predicate

	for _, tag := range o.Tags {
		preds = append(preds, fql.Has(fql.FieldTags, tag))
	}

	if term := searchTerm(o.NamePattern); term != "" {
		preds = append(preds, fql.Search(term))
	}

	if o.Model != "" {
		preds = append(preds, fql.Search(o.Model))
	}

	for _, term := range o.SearchTerms {
		if term != "" {
			preds = append(preds, fql.Search(term))
		}
	}

	if o.Slow {
		preds = append(preds, fql.Gt(fql.FieldLatency, fql.DurationLiteral(SlowThreshold)))
	}
	if o.Recent {
		preds = append(preds, fql.Gt(fql.FieldStartTime, fql.TimeLiteral(now.Add(-RecentWindow))))
	}
	if o.Today {
		preds = append(preds, fql.Gt(fql.FieldStartTime, fql.TimeLiteral(midnight(now))))
	}

	if o.MinLatency != "" {
		d, err := timespec.ParseDuration(o.MinLatency)
		if err != nil {
			return nil, timespec.ForOption(err, "--min-latency")
		}
		preds = append(preds, fql.Gt(fql.FieldLatency, fql.DurationLiteral(d)))
	}

	if o.MaxLatency != "" {
		d, err := timespec.ParseDuration(o.MaxLatency)
		if err != nil {
			return nil, timespec.ForOption(err, "--max-latency")
		}
		preds = append(preds, fql.Lt(fql.FieldLatency, fql.DurationLiteral(d)))
	}

	if o.Last != "" {
		d, err := timespec.ParseDuration(o.Last)
		if err != nil {
			return nil, timespec.ForOption(err, "--last")
		}
		preds = append(preds, fql.Gt(fql.FieldStartTime, fql.TimeLiteral(now.Add(-d.Std()))))
	}

	if o.Since != "" {
		t, err := timespec.ParseTimePoint(o.Since, now)
		if err != nil {
			return nil, timespec.ForOption(err, "--since")
		}
		preds = append(preds, fql.Gt(fql.FieldStartTime, fql.TimeLiteral(t)))
	}

	return preds, nil
}

// Expression builds the predicates and composes them with the raw filter.
// An empty result means no filter should be sent.
func (o *Options) Expression(now time.Time) (string, error) {
	preds, err := o.Build(now)
	if err != nil {
		return "", err
	}
	return fql.Compose(preds, o.Raw), nil
}

// searchTerm reduces a wildcard pattern to the substring the server searches
// for. Every '*' is dropped, so "test-*-prod" becomes "test--prod": search is
// substring based and does not implement full glob semantics.
func searchTerm(pattern string) string {
	return strings.ReplaceAll(pattern, "*", "")
}

// midnight returns the start of now's calendar day in now's location.
func midnight(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}
