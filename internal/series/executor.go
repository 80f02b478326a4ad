package series

import (
	"context"
	"fmt"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// Executor applies scope-based mutations. Ownership and existence are
// checked before any write; the write itself is one bulk statement built
// from FilterForScope. A zero-row match is a success, not an error: a
// concurrent caller may have deleted the series first, and the outcome the
// caller asked for already holds.
type Executor struct {
	store Store
}

func NewExecutor(store Store) *Executor {
	return &Executor{store: store}
}

// UpdateResult reports a bulk update: the rows as the statement left them
// and a literal count message for display.
type UpdateResult struct {
	Message      string              `json:"message"`
	UpdatedCount int                 `json:"updatedCount"`
	Occurrences  []models.Occurrence `json:"occurrences"`
}

// DeleteResult reports a bulk delete. DeletedIDs lets callers reconcile
// cached state without a refetch; Occurrences carries the final row
// snapshots for archiving and collaborator notification.
type DeleteResult struct {
	Message     string              `json:"message"`
	DeletedIDs  []uint              `json:"deletedIds"`
	Occurrences []models.Occurrence `json:"-"`
}

// Preview loads the anchor, its series siblings and the per-scope options.
// Same ownership rule as the mutations: only the poster sees counts.
func (e *Executor) Preview(ctx context.Context, anchorID, requesterID uint) (*models.Occurrence, []models.Occurrence, []Option, error) {
	anchor, err := e.store.GetOccurrence(ctx, anchorID)
	if err != nil {
		return nil, nil, nil, err
	}
	if anchor.PosterID != requesterID {
		return nil, nil, nil, ErrForbidden
	}
	var siblings []models.Occurrence
	if anchor.IsSeriesMember() {
		siblings, err = e.store.SeriesMembers(ctx, *anchor.RoundTripGroupID)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return anchor, siblings, ScopeOptions(anchor, siblings), nil
}

// UpdateSeries patches the scope's target set in one statement.
func (e *Executor) UpdateSeries(ctx context.Context, anchorID uint, scope Scope, patch Patch, requesterID uint) (*UpdateResult, error) {
	anchor, err := e.store.GetOccurrence(ctx, anchorID)
	if err != nil {
		return nil, err
	}
	if anchor.PosterID != requesterID {
		return nil, ErrForbidden
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	rows, err := e.store.BulkUpdate(ctx, FilterForScope(anchor, scope), patch.Updates())
	if err != nil {
		return nil, err
	}
	return &UpdateResult{
		Message:      fmt.Sprintf("Updated %s", rideCount(len(rows))),
		UpdatedCount: len(rows),
		Occurrences:  rows,
	}, nil
}

// DeleteSeries removes the scope's target set in one statement. The anchor
// is resolved including soft-deleted rows: repeating a delete keeps its
// ownership check and reports an empty result instead of not-found.
func (e *Executor) DeleteSeries(ctx context.Context, anchorID uint, scope Scope, requesterID uint) (*DeleteResult, error) {
	anchor, err := e.store.GetOccurrenceIncludingDeleted(ctx, anchorID)
	if err != nil {
		return nil, err
	}
	if anchor.PosterID != requesterID {
		return nil, ErrForbidden
	}

	rows, err := e.store.BulkDelete(ctx, FilterForScope(anchor, scope))
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return &DeleteResult{
		Message:     fmt.Sprintf("Deleted %s", rideCount(len(ids))),
		DeletedIDs:  ids,
		Occurrences: rows,
	}, nil
}

func rideCount(n int) string {
	if n == 1 {
		return "1 ride"
	}
	return fmt.Sprintf("%d rides", n)
}
