package grouping_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/amasendi/ridepool-backend/internal/grouping"
	"github.com/amasendi/ridepool-backend/internal/models"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func occurrence(id uint, start, end, date string) models.Occurrence {
	return models.Occurrence{
		Model:         gorm.Model{ID: id},
		PosterID:      1,
		PostingType:   models.PostingTypeDriver,
		StartLocation: start,
		EndLocation:   end,
		DepartureDate: day(date),
		DepartureTime: "08:00",
		TripDirection: models.DirectionNone,
		Status:        models.StatusActive,
	}
}

func seriesMember(id uint, groupID, date string) models.Occurrence {
	o := occurrence(id, "SF", "Tahoe", date)
	o.RoundTripGroupID = &groupID
	o.IsRecurring = true
	return o
}

func roundTripPair(depID, retID uint, groupID, depDate, retDate string) (models.Occurrence, models.Occurrence) {
	dep := occurrence(depID, "SF", "Tahoe", depDate)
	dep.IsRoundTrip = true
	dep.TripDirection = models.DirectionDeparture
	dep.RoundTripGroupID = &groupID

	ret := occurrence(retID, "Tahoe", "SF", retDate)
	ret.IsRoundTrip = true
	ret.TripDirection = models.DirectionReturn
	ret.RoundTripGroupID = &groupID
	ret.DepartureTime = "17:30"
	return dep, ret
}

func TestFilterDepartureLegs_DropsReturnLegs(t *testing.T) {
	dep, ret := roundTripPair(1, 2, "G", "2025-02-01", "2025-02-08")
	plain := occurrence(3, "Oakland", "LA", "2025-02-03")

	legs := grouping.FilterDepartureLegs([]models.Occurrence{dep, ret, plain})

	require.Len(t, legs, 2)
	for _, o := range legs {
		assert.NotEqual(t, models.DirectionReturn, o.TripDirection)
	}
}

func TestFilterDepartureLegs_OrphanedReturnLegDisappears(t *testing.T) {
	_, ret := roundTripPair(1, 2, "G", "2025-02-01", "2025-02-08")

	legs := grouping.FilterDepartureLegs([]models.Occurrence{ret})

	assert.Empty(t, legs)
}

func TestExtractSeriesGroups_PartitionsAndSorts(t *testing.T) {
	// Deliberately out of date order within the group.
	occs := []models.Occurrence{
		seriesMember(3, "G1", "2025-02-15"),
		seriesMember(1, "G1", "2025-02-01"),
		seriesMember(2, "G1", "2025-02-08"),
		seriesMember(9, "G2", "2025-01-20"),
		occurrence(7, "Oakland", "LA", "2025-02-03"), // not a series member
	}

	groups := grouping.ExtractSeriesGroups(occs)

	require.Len(t, groups, 2)
	// Groups ordered by earliest member date: G2 (Jan 20) before G1 (Feb 1).
	assert.Equal(t, "G2", groups[0].GroupID)
	assert.Equal(t, "G1", groups[1].GroupID)

	g1 := groups[1]
	require.Len(t, g1.Members, 3)
	assert.Equal(t, uint(1), g1.Members[0].ID)
	assert.Equal(t, uint(2), g1.Members[1].ID)
	assert.Equal(t, uint(3), g1.Members[2].ID)
	assert.Equal(t, "SF", g1.StartLocation)
	assert.Equal(t, "Tahoe", g1.EndLocation)
	assert.Equal(t, "SF to Tahoe", g1.Title)
}

func TestExtractSeriesGroups_SameDateTieBreaksByID(t *testing.T) {
	occs := []models.Occurrence{
		seriesMember(5, "G", "2025-02-01"),
		seriesMember(4, "G", "2025-02-01"),
	}

	groups := grouping.ExtractSeriesGroups(occs)

	require.Len(t, groups, 1)
	assert.Equal(t, uint(4), groups[0].Members[0].ID)
	assert.Equal(t, uint(5), groups[0].Members[1].ID)
}

func TestExtractSeriesGroups_SingleMemberGroupSurvives(t *testing.T) {
	occs := []models.Occurrence{seriesMember(1, "G", "2025-02-01")}

	groups := grouping.ExtractSeriesGroups(occs)

	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 1)
}

func TestExtractSeriesGroups_Idempotent(t *testing.T) {
	occs := []models.Occurrence{
		seriesMember(2, "G1", "2025-02-08"),
		seriesMember(1, "G1", "2025-02-01"),
		seriesMember(5, "G2", "2025-03-01"),
	}

	first := grouping.ExtractSeriesGroups(occs)

	var flattened []models.Occurrence
	for _, g := range first {
		flattened = append(flattened, g.Members...)
	}
	second := grouping.ExtractSeriesGroups(flattened)

	assert.Equal(t, first, second)
}

func TestMergeRoundTripPair_CopiesReturnDateAndTime(t *testing.T) {
	dep, ret := roundTripPair(1, 2, "G", "2025-02-01", "2025-02-08")
	depBefore, retBefore := dep, ret

	merged := grouping.MergeRoundTripPair(dep, ret)

	require.NotNil(t, merged.ReturnDate)
	require.NotNil(t, merged.ReturnTime)
	assert.Equal(t, day("2025-02-08"), *merged.ReturnDate)
	assert.Equal(t, "17:30", *merged.ReturnTime)
	assert.Equal(t, uint(1), merged.ID)
	assert.Equal(t, "SF", merged.StartLocation)

	// Inputs must be untouched.
	assert.Equal(t, depBefore, dep)
	assert.Equal(t, retBefore, ret)
}

func TestAssembleListing_MergesRoundTrip(t *testing.T) {
	// Departure SF->Tahoe on Feb 1, return Tahoe->SF on Feb 8, group G.
	dep, ret := roundTripPair(1, 2, "G", "2025-02-01", "2025-02-08")

	entries := grouping.AssembleListing([]models.Occurrence{dep, ret})

	require.Len(t, entries, 1)
	assert.Equal(t, uint(1), entries[0].ID)
	require.NotNil(t, entries[0].ReturnDate)
	assert.Equal(t, day("2025-02-08"), *entries[0].ReturnDate)
	assert.Equal(t, "17:30", *entries[0].ReturnTime)
}

func TestAssembleListing_SeriesCollapsesToEarliestMember(t *testing.T) {
	occs := []models.Occurrence{
		seriesMember(3, "G", "2025-02-15"),
		seriesMember(1, "G", "2025-02-01"),
		seriesMember(2, "G", "2025-02-08"),
	}

	entries := grouping.AssembleListing(occs)

	require.Len(t, entries, 1)
	assert.Equal(t, uint(1), entries[0].ID)
	assert.Equal(t, 3, entries[0].SeriesSize)
}

func TestAssembleListing_SortsByDateTimeID(t *testing.T) {
	a := occurrence(10, "A", "B", "2025-02-02")
	b := occurrence(11, "C", "D", "2025-02-01")
	c := occurrence(12, "E", "F", "2025-02-01")
	c.DepartureTime = "06:00"

	entries := grouping.AssembleListing([]models.Occurrence{a, b, c})

	require.Len(t, entries, 3)
	assert.Equal(t, uint(12), entries[0].ID) // Feb 1 06:00
	assert.Equal(t, uint(11), entries[1].ID) // Feb 1 08:00
	assert.Equal(t, uint(10), entries[2].ID) // Feb 2
}

func TestAssembleListing_OrphanedReturnLegDropped(t *testing.T) {
	_, ret := roundTripPair(1, 2, "G", "2025-02-01", "2025-02-08")
	plain := occurrence(3, "Oakland", "LA", "2025-02-03")

	entries := grouping.AssembleListing([]models.Occurrence{ret, plain})

	require.Len(t, entries, 1)
	assert.Equal(t, uint(3), entries[0].ID)
}

func TestSeriesSiblings_ReturnsSortedGroupIncludingAnchor(t *testing.T) {
	occs := []models.Occurrence{
		seriesMember(2, "G", "2025-02-08"),
		seriesMember(1, "G", "2025-02-01"),
		seriesMember(9, "H", "2025-02-01"),
	}
	anchor := occs[0]

	siblings := grouping.SeriesSiblings(occs, &anchor)

	require.Len(t, siblings, 2)
	assert.Equal(t, uint(1), siblings[0].ID)
	assert.Equal(t, uint(2), siblings[1].ID)
}

func TestSeriesSiblings_NilForNonMember(t *testing.T) {
	plain := occurrence(1, "A", "B", "2025-02-01")

	assert.Nil(t, grouping.SeriesSiblings([]models.Occurrence{plain}, &plain))
}
