package service

import (
	"sort"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

// SortIntervals returns a copy of intervals ordered by start time. Intervals
// sharing a start keep their input order.
func SortIntervals(intervals []domain.LocationInterval) []domain.LocationInterval {
	sorted := append([]domain.LocationInterval(nil), intervals...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})
	return sorted
}

// FindContaining binary searches intervals sorted by start for one whose
// [Start, End] holds at. The search is exact for disjoint intervals only;
// with overlaps it may report no match although one exists.
func FindContaining(sorted []domain.LocationInterval, at time.Time) (domain.LocationInterval, bool) {
	lo, hi := 0, len(sorted)-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		candidate := sorted[mid]
		switch {
		case candidate.Contains(at):
			return candidate, true
		case at.Before(candidate.Start):
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return domain.LocationInterval{}, false
}

// Resolution counts how the locations of a payment batch were settled.
type Resolution struct {
	Geotagged  int
	Matched    int
	Unresolved int
}

// ResolveLocations fills in the location of every transaction that has none
// from the interval containing its timestamp. Unmatched transactions keep a
// nil location.
func ResolveLocations(txs []domain.PaymentTransaction, sorted []domain.LocationInterval) Resolution {
	var res Resolution
	for i := range txs {
		if txs[i].Location != nil {
			res.Geotagged++
			continue
		}
		interval, ok := FindContaining(sorted, txs[i].Timestamp)
		if !ok {
			res.Unresolved++
			continue
		}
		loc := interval.Location
		txs[i].Location = &loc
		res.Matched++
	}
	return res
}

// MergeTimeline flattens a day window into one sequence ordered by start time.
// Ties keep movements before visits before payments.
func MergeTimeline(window domain.DayWindow) []domain.TimelineEntry {
	entries := make([]domain.TimelineEntry, 0, len(window.Movements)+len(window.Visits)+len(window.Payments))
	for i := range window.Movements {
		m := &window.Movements[i]
		entries = append(entries, domain.TimelineEntry{Kind: domain.KindMovement, Start: m.StartTime, Movement: m})
	}
	for i := range window.Visits {
		v := &window.Visits[i]
		entries = append(entries, domain.TimelineEntry{Kind: domain.KindVisit, Start: v.StartTime, Visit: v})
	}
	for i := range window.Payments {
		p := &window.Payments[i]
		entries = append(entries, domain.TimelineEntry{Kind: domain.KindPayment, Start: p.Timestamp, Payment: p})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start.Before(entries[j].Start)
	})
	return entries
}
