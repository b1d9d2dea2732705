package domain

import "time"

// EntryKind tags a timeline entry with the record kind it came from.
type EntryKind string

const (
	KindMovement EntryKind = "movement"
	KindVisit    EntryKind = "visit"
	KindPayment  EntryKind = "payment"
)

// LocationInterval is the part of a movement or visit needed to place a point
// in time: where the user was between Start and End. Movements contribute their
// start coordinates.
type LocationInterval struct {
	Kind     EntryKind
	Location Coordinates
	Start    time.Time
	End      time.Time
}

// Contains reports whether t lies within [Start, End].
func (i LocationInterval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// DayWindow groups the records of each kind that overlap one query window.
type DayWindow struct {
	Movements []Movement
	Visits    []Visit
	Payments  []PaymentTransaction
}

// TimelineEntry is one row of a merged timeline. Exactly one of Movement, Visit
// or Payment is set, matching Kind.
type TimelineEntry struct {
	Kind     EntryKind
	Start    time.Time
	Movement *Movement
	Visit    *Visit
	Payment  *PaymentTransaction
}
