// Package series implements scope-based bulk mutation of trip postings:
// resolving a requested scope (single, future, series) against an anchor
// occurrence, executing the mutation as one filtered bulk statement, and the
// confirmation-session coordinator that guards destructive calls.
package series

import (
	"fmt"
	"time"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// Scope is the blast radius of a bulk mutation relative to its anchor.
type Scope string

const (
	ScopeSingle Scope = "single"
	ScopeFuture Scope = "future"
	ScopeSeries Scope = "series"
)

// ParseScope parses a scope parameter. Empty defaults to single.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "":
		return ScopeSingle, nil
	case ScopeSingle, ScopeFuture, ScopeSeries:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("%w: scope must be single, future or series, got %q", ErrValidation, s)
	}
}

// Option is one selectable scope with its literal target count, exposed to
// callers before they commit so the blast radius is verifiable.
type Option struct {
	Scope     Scope `json:"scope"`
	Count     int   `json:"count"`
	Available bool  `json:"available"`
}

// ResolveTargets computes the exact target set for a scope. siblings is the
// anchor's full series sorted by (date, id), anchor included; pass nil for a
// non-series anchor, in which case every scope targets just the anchor.
// The future scope is inclusive: the anchor's own date is always in range.
func ResolveTargets(anchor *models.Occurrence, siblings []models.Occurrence, scope Scope) []models.Occurrence {
	if scope == ScopeSingle || !anchor.IsSeriesMember() || len(siblings) == 0 {
		return []models.Occurrence{*anchor}
	}
	if scope == ScopeSeries {
		out := make([]models.Occurrence, len(siblings))
		copy(out, siblings)
		return out
	}
	anchorDay := anchor.DepartureDay()
	var out []models.Occurrence
	for _, m := range siblings {
		if !m.DepartureDay().Before(anchorDay) {
			out = append(out, m)
		}
	}
	return out
}

// FutureCutoff returns the date-only lower bound used by the future scope.
func FutureCutoff(anchor *models.Occurrence) time.Time {
	return anchor.DepartureDay()
}

// ScopeOptions lists every scope with its target count. The future option is
// only available when it targets more than the anchor alone; offering it
// otherwise would be a misleading duplicate of single. The series option is
// available for any series member, orphaned single-member series included,
// and only withheld from anchors that have no series at all.
func ScopeOptions(anchor *models.Occurrence, siblings []models.Occurrence) []Option {
	futureCount := len(ResolveTargets(anchor, siblings, ScopeFuture))
	seriesCount := len(ResolveTargets(anchor, siblings, ScopeSeries))
	return []Option{
		{Scope: ScopeSingle, Count: 1, Available: true},
		{Scope: ScopeFuture, Count: futureCount, Available: futureCount > 1},
		{Scope: ScopeSeries, Count: seriesCount, Available: anchor.IsSeriesMember()},
	}
}
