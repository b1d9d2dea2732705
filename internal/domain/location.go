package domain

import "time"

// Coordinates is a point in decimal degrees.
type Coordinates struct {
	Lat float64
	Lng float64
}

// Movement is an interval of travel between two points.
type Movement struct {
	ID        int64
	UserID    int64
	Start     Coordinates
	End       Coordinates
	StartTime time.Time
	EndTime   time.Time
	// Waypoints is only populated on read paths.
	Waypoints []Waypoint
}

// Waypoint is a point sampled along a movement's path. Order is 1-based and
// contiguous within one movement.
type Waypoint struct {
	MovementID int64
	UserID     int64
	Order      int
	Location   Coordinates
}

// Visit is an interval spent at a single place.
type Visit struct {
	ID        int64
	UserID    int64
	Location  Coordinates
	StartTime time.Time
	EndTime   time.Time
}
