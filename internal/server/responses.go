package server

import (
	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/service"
)

type statusResponse struct {
	Status string `json:"status"`
}

type userResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type usersResponse struct {
	Users []userResponse `json:"users"`
}

type importResponse struct {
	RunID           string   `json:"runId"`
	UserID          int64    `json:"userId"`
	Movements       int      `json:"movements"`
	Waypoints       int      `json:"waypoints"`
	Visits          int      `json:"visits"`
	Payments        int      `json:"payments"`
	Geotagged       int      `json:"geotagged"`
	Matched         int      `json:"matched"`
	Unresolved      int      `json:"unresolved"`
	Skipped         int      `json:"skipped"`
	Warnings        []string `json:"warnings"`
	WarningsDropped int      `json:"warningsDropped,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func newImportResponse(r service.ImportReport) importResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return importResponse{
		RunID:           r.RunID,
		UserID:          r.UserID,
		Movements:       r.Movements,
		Waypoints:       r.Waypoints,
		Visits:          r.Visits,
		Payments:        r.Payments,
		Geotagged:       r.Geotagged,
		Matched:         r.Matched,
		Unresolved:      r.Unresolved,
		Skipped:         r.Skipped,
		Warnings:        warnings,
		WarningsDropped: r.WarningsDropped,
	}
}

type coordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type waypointResponse struct {
	Order    int                 `json:"order"`
	Location coordinatesResponse `json:"location"`
}

// timelineEntryResponse is one row of the day timeline. Kind tells which of the
// optional fields are present.
type timelineEntryResponse struct {
	Kind          string               `json:"kind"`
	ID            int64                `json:"id"`
	Start         string               `json:"start"`
	End           string               `json:"end,omitempty"`
	StartLocation *coordinatesResponse `json:"startLocation,omitempty"`
	EndLocation   *coordinatesResponse `json:"endLocation,omitempty"`
	Waypoints     []waypointResponse   `json:"waypoints,omitempty"`
	Location      *coordinatesResponse `json:"location,omitempty"`
	Type          string               `json:"type,omitempty"`
	Amount        string               `json:"amount,omitempty"`
}

type dayTimelineResponse struct {
	UserID  int64                   `json:"userId"`
	Date    string                  `json:"date"`
	Entries []timelineEntryResponse `json:"entries"`
}

func toEntryResponse(e domain.TimelineEntry) timelineEntryResponse {
	resp := timelineEntryResponse{Kind: string(e.Kind), Start: formatTime(e.Start)}
	switch {
	case e.Movement != nil:
		m := e.Movement
		resp.ID = m.ID
		resp.End = formatTime(m.EndTime)
		resp.StartLocation = coordinates(&m.Start)
		resp.EndLocation = coordinates(&m.End)
		resp.Waypoints = make([]waypointResponse, 0, len(m.Waypoints))
		for _, wp := range m.Waypoints {
			resp.Waypoints = append(resp.Waypoints, waypointResponse{
				Order:    wp.Order,
				Location: coordinatesResponse{Lat: wp.Location.Lat, Lng: wp.Location.Lng},
			})
		}
	case e.Visit != nil:
		resp.ID = e.Visit.ID
		resp.End = formatTime(e.Visit.EndTime)
		resp.Location = coordinates(&e.Visit.Location)
	case e.Payment != nil:
		resp.ID = e.Payment.ID
		resp.Type = string(e.Payment.Type)
		resp.Amount = e.Payment.Amount.String()
		resp.Location = coordinates(e.Payment.Location)
	}
	return resp
}

func coordinates(c *domain.Coordinates) *coordinatesResponse {
	if c == nil {
		return nil
	}
	return &coordinatesResponse{Lat: c.Lat, Lng: c.Lng}
}
