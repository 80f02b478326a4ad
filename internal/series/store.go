package series

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// Filter is the predicate of one bulk statement. Exactly one shape is ever
// built: an id match for single-scope mutations, or a group match (plus an
// optional date lower bound) for future/series mutations. The predicate
// itself defines the target set at execution time; there is no read-then-
// write window to protect.
type Filter struct {
	AnchorID uint
	GroupID  string
	FromDate *time.Time
}

// FilterForScope translates a resolved scope into the statement predicate.
// A non-series anchor always gets the id filter, whatever the scope says: a
// group filter against a non-member would match nothing and silently ignore
// the request.
func FilterForScope(anchor *models.Occurrence, scope Scope) Filter {
	if scope == ScopeSingle || !anchor.IsSeriesMember() {
		return Filter{AnchorID: anchor.ID}
	}
	f := Filter{GroupID: *anchor.RoundTripGroupID}
	if scope == ScopeFuture {
		day := anchor.DepartureDay()
		f.FromDate = &day
	}
	return f
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.GroupID == "" {
		return q.Where("id = ?", f.AnchorID)
	}
	q = q.Where("round_trip_group_id = ? AND is_recurring = ?", f.GroupID, true)
	if f.FromDate != nil {
		q = q.Where("departure_date >= ?", *f.FromDate)
	}
	return q
}

// Store is the occurrence persistence boundary used by the Executor. The
// production implementation is GormStore; tests substitute a mock.
type Store interface {
	GetOccurrence(ctx context.Context, id uint) (*models.Occurrence, error)
	GetOccurrenceIncludingDeleted(ctx context.Context, id uint) (*models.Occurrence, error)
	SeriesMembers(ctx context.Context, groupID string) ([]models.Occurrence, error)
	BulkUpdate(ctx context.Context, f Filter, values map[string]interface{}) ([]models.Occurrence, error)
	BulkDelete(ctx context.Context, f Filter) ([]models.Occurrence, error)
}

// GormStore runs occurrence statements against postgres. Both bulk
// mutations are single statements with a RETURNING clause, so the affected
// rows come back from the same statement that changed them and concurrent
// readers see either the old series or the new one, never a mix.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

func (s *GormStore) GetOccurrence(ctx context.Context, id uint) (*models.Occurrence, error) {
	var occ models.Occurrence
	if err := s.db.WithContext(ctx).First(&occ, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get occurrence", Err: err}
	}
	return &occ, nil
}

// GetOccurrenceIncludingDeleted resolves an anchor even after it has been
// soft deleted. The delete path uses this so repeating a delete still passes
// the ownership check and settles as an empty success once the live-row
// filter matches nothing.
func (s *GormStore) GetOccurrenceIncludingDeleted(ctx context.Context, id uint) (*models.Occurrence, error) {
	var occ models.Occurrence
	if err := s.db.WithContext(ctx).Unscoped().First(&occ, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "get occurrence", Err: err}
	}
	return &occ, nil
}

func (s *GormStore) SeriesMembers(ctx context.Context, groupID string) ([]models.Occurrence, error) {
	var members []models.Occurrence
	if err := s.db.WithContext(ctx).
		Where("round_trip_group_id = ? AND is_recurring = ?", groupID, true).
		Order("departure_date ASC, id ASC").
		Find(&members).Error; err != nil {
		return nil, &StoreError{Op: "list series members", Err: err}
	}
	return members, nil
}

func (s *GormStore) BulkUpdate(ctx context.Context, f Filter, values map[string]interface{}) ([]models.Occurrence, error) {
	var rows []models.Occurrence
	result := f.apply(s.db.WithContext(ctx).Model(&rows).Clauses(clause.Returning{})).
		Updates(values)
	if result.Error != nil {
		return nil, &StoreError{Op: "bulk update", Err: result.Error}
	}
	return rows, nil
}

func (s *GormStore) BulkDelete(ctx context.Context, f Filter) ([]models.Occurrence, error) {
	var rows []models.Occurrence
	result := f.apply(s.db.WithContext(ctx).Clauses(clause.Returning{})).
		Delete(&rows)
	if result.Error != nil {
		return nil, &StoreError{Op: "bulk delete", Err: result.Error}
	}
	return rows, nil
}
