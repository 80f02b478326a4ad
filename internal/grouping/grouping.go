// Package grouping contains the pure display pipeline for trip postings:
// departure-leg filtering, series extraction, round-trip merging and listing
// assembly. Nothing in here touches the database; callers fetch rows first
// and pass them in.
package grouping

import (
	"sort"
	"time"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// ListingEntry is a display-only record. For a merged round trip it carries
// the departure leg plus the return leg's date and time; for a series it
// carries the earliest member plus the series size. Stored rows are never
// collapsed, only their presentation.
type ListingEntry struct {
	models.Occurrence
	ReturnDate *time.Time `json:"returnDate,omitempty"`
	ReturnTime *string    `json:"returnTime,omitempty"`
	SeriesSize int        `json:"seriesSize,omitempty"`
}

// SeriesGroup is one recurring series, members sorted by (date, id).
type SeriesGroup struct {
	GroupID       string              `json:"groupId"`
	Title         string              `json:"title"`
	StartLocation string              `json:"startLocation"`
	EndLocation   string              `json:"endLocation"`
	Members       []models.Occurrence `json:"members"`
}

func occurrenceLess(a, b *models.Occurrence) bool {
	ad, bd := a.DepartureDay(), b.DepartureDay()
	if !ad.Equal(bd) {
		return ad.Before(bd)
	}
	return a.ID < b.ID
}

// FilterDepartureLegs drops return legs. A return leg is not an independent
// posting; it only surfaces merged into its departure sibling. A return leg
// whose departure sibling is missing disappears from listings entirely.
func FilterDepartureLegs(occurrences []models.Occurrence) []models.Occurrence {
	legs := make([]models.Occurrence, 0, len(occurrences))
	for _, o := range occurrences {
		if o.TripDirection != models.DirectionReturn {
			legs = append(legs, o)
		}
	}
	return legs
}

// ExtractSeriesGroups partitions series members by group id. Members are
// sorted by (date, id); groups are ordered by their earliest member's date.
// A group of size 1 (orphaned series member) is returned unchanged.
func ExtractSeriesGroups(occurrences []models.Occurrence) []SeriesGroup {
	byGroup := make(map[string][]models.Occurrence)
	order := make([]string, 0)
	for _, o := range occurrences {
		if !o.IsSeriesMember() {
			continue
		}
		id := *o.RoundTripGroupID
		if _, ok := byGroup[id]; !ok {
			order = append(order, id)
		}
		byGroup[id] = append(byGroup[id], o)
	}

	groups := make([]SeriesGroup, 0, len(order))
	for _, id := range order {
		members := byGroup[id]
		sort.SliceStable(members, func(i, j int) bool {
			return occurrenceLess(&members[i], &members[j])
		})
		first := members[0]
		groups = append(groups, SeriesGroup{
			GroupID:       id,
			Title:         first.StartLocation + " to " + first.EndLocation,
			StartLocation: first.StartLocation,
			EndLocation:   first.EndLocation,
			Members:       members,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Members[0], groups[j].Members[0]
		ad, bd := a.DepartureDay(), b.DepartureDay()
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		return groups[i].GroupID < groups[j].GroupID
	})
	return groups
}

// SeriesSiblings returns the anchor's full series (anchor included), sorted
// by (date, id). Returns nil when the anchor is not a series member.
func SeriesSiblings(occurrences []models.Occurrence, anchor *models.Occurrence) []models.Occurrence {
	if !anchor.IsSeriesMember() {
		return nil
	}
	var members []models.Occurrence
	for _, o := range occurrences {
		if o.IsSeriesMember() && *o.RoundTripGroupID == *anchor.RoundTripGroupID {
			members = append(members, o)
		}
	}
	sort.SliceStable(members, func(i, j int) bool {
		return occurrenceLess(&members[i], &members[j])
	})
	return members
}

// MergeRoundTripPair produces the display record for a non-recurring round
// trip: the departure leg with the return leg's date and time attached.
// Neither input is modified.
func MergeRoundTripPair(departureLeg, returnLeg models.Occurrence) ListingEntry {
	returnDate := returnLeg.DepartureDay()
	returnTime := returnLeg.DepartureTime
	return ListingEntry{
		Occurrence: departureLeg,
		ReturnDate: &returnDate,
		ReturnTime: &returnTime,
	}
}

// AssembleListing builds the top-level listing: return legs filtered out,
// each round-trip pair or series replaced by one representative entry, the
// result sorted by (date, time, id).
func AssembleListing(occurrences []models.Occurrence) []ListingEntry {
	legs := FilterDepartureLegs(occurrences)

	returnLegs := make(map[string]models.Occurrence)
	for _, o := range occurrences {
		if o.TripDirection == models.DirectionReturn && o.RoundTripGroupID != nil && !o.IsRecurring {
			returnLegs[*o.RoundTripGroupID] = o
		}
	}

	groupSizes := make(map[string]int)
	for _, o := range legs {
		if o.IsSeriesMember() {
			groupSizes[*o.RoundTripGroupID]++
		}
	}

	entries := make([]ListingEntry, 0, len(legs))
	seen := make(map[string]bool)
	for _, o := range legs {
		if o.RoundTripGroupID == nil {
			entries = append(entries, ListingEntry{Occurrence: o})
			continue
		}
		id := *o.RoundTripGroupID
		if seen[id] {
			continue
		}
		seen[id] = true

		if o.IsRecurring {
			// Represent the series by its earliest member.
			rep := o
			for _, m := range legs {
				if m.IsSeriesMember() && *m.RoundTripGroupID == id && occurrenceLess(&m, &rep) {
					rep = m
				}
			}
			entries = append(entries, ListingEntry{Occurrence: rep, SeriesSize: groupSizes[id]})
			continue
		}

		if ret, ok := returnLegs[id]; ok {
			entries = append(entries, MergeRoundTripPair(o, ret))
		} else {
			entries = append(entries, ListingEntry{Occurrence: o})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		ad, bd := a.DepartureDay(), b.DepartureDay()
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		if a.DepartureTime != b.DepartureTime {
			return a.DepartureTime < b.DepartureTime
		}
		return a.ID < b.ID
	})
	return entries
}
