package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/graph"
)

func TestGraphStoreInsertMovementReturnsSequenceID(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushWriteResult(graph.Result{Records: []graph.Record{{"id": int64(7)}}})
	store := NewGraphStore(mem)

	id, err := store.InsertMovement(context.Background(), domain.Movement{
		UserID:    3,
		Start:     domain.Coordinates{Lat: 1, Lng: 2},
		End:       domain.Coordinates{Lat: 3, Lng: 4},
		StartTime: day,
		EndTime:   day.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("insert movement: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected id 7, got %d", id)
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 write query, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Query, "Sequence {label: 'Movement'}") {
		t.Fatalf("expected movement sequence in query, got %s", calls[0].Query)
	}
	if calls[0].Params["startTs"] != day.UnixMilli() || calls[0].Params["endTs"] != day.Add(time.Hour).UnixMilli() {
		t.Fatalf("expected epoch millis params, got %+v", calls[0].Params)
	}
}

func TestGraphStoreMissingOwnerIsNotFound(t *testing.T) {
	store := NewGraphStore(graph.NewMemoryClient())
	ctx := context.Background()

	if _, err := store.InsertVisit(ctx, domain.Visit{UserID: 9}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown user, got %v", err)
	}
	if _, err := store.GetUser(ctx, 9); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGraphStoreBatchesPayments(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	loc := domain.Coordinates{Lat: 1, Lng: 2}

	err := store.InsertPaymentTransactions(context.Background(), []domain.PaymentTransaction{
		{UserID: 1, Type: domain.TransactionSent, Amount: decimal.RequireFromString("12.50"), Location: &loc, Timestamp: day},
		{UserID: 1, Type: domain.TransactionReceived, Amount: decimal.NewFromInt(3), Timestamp: day},
	})
	if err != nil {
		t.Fatalf("insert payments: %v", err)
	}
	if err := store.InsertPaymentTransactions(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	calls := mem.WriteCalls()
	if len(calls) != 1 {
		t.Fatalf("expected a single batched write, got %d", len(calls))
	}
	rows, ok := calls[0].Params["payments"].([]map[string]any)
	if !ok || len(rows) != 2 {
		t.Fatalf("unexpected payments param %#v", calls[0].Params["payments"])
	}
	if rows[0]["amount"] != "12.5" || rows[0]["lat"] != 1.0 || rows[1]["lat"] != nil {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestGraphStoreDayWindowDecodesRecords(t *testing.T) {
	mem := graph.NewMemoryClient()
	mem.PushReadResult(graph.Result{Records: []graph.Record{{
		"id": int64(1), "startLat": 51.5, "startLng": -0.12, "endLat": 51.51, "endLng": -0.13,
		"startTs": day.Add(-time.Hour).UnixMilli(), "endTs": day.Add(time.Hour).UnixMilli(),
		"waypoints": []any{
			map[string]any{"waypointOrder": int64(1), "lat": 51.501, "lng": -0.121},
			map[string]any{"waypointOrder": int64(2), "lat": 51.502, "lng": -0.122},
		},
	}}})
	mem.PushReadResult(graph.Result{Records: []graph.Record{{
		"id": int64(2), "lat": 1.0, "lng": 2.0,
		"startTs": day.Add(15 * time.Hour).UnixMilli(), "endTs": day.Add(16 * time.Hour).UnixMilli(),
	}}})
	mem.PushReadResult(graph.Result{Records: []graph.Record{{
		"id": int64(3), "type": "Received", "amount": "40.00", "lat": nil, "lng": nil,
		"ts": day.Add(9 * time.Hour).UnixMilli(),
	}}})
	store := NewGraphStore(mem)

	window, err := store.DayWindow(context.Background(), 5, day, day.Add(24*time.Hour), []domain.TransactionType{domain.TransactionReceived})
	if err != nil {
		t.Fatalf("day window: %v", err)
	}

	if len(window.Movements) != 1 || len(window.Movements[0].Waypoints) != 2 {
		t.Fatalf("unexpected movements %+v", window.Movements)
	}
	if wp := window.Movements[0].Waypoints[1]; wp.Order != 2 || wp.MovementID != 1 || wp.UserID != 5 {
		t.Fatalf("unexpected waypoint %+v", wp)
	}
	if len(window.Visits) != 1 || !window.Visits[0].StartTime.Equal(day.Add(15*time.Hour)) {
		t.Fatalf("unexpected visits %+v", window.Visits)
	}
	if len(window.Payments) != 1 || window.Payments[0].Location != nil || !window.Payments[0].Amount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected payments %+v", window.Payments)
	}

	reads := mem.ReadCalls()
	if len(reads) != 3 {
		t.Fatalf("expected 3 reads, got %d", len(reads))
	}
	if types, _ := reads[2].Params["types"].([]string); len(types) != 1 || types[0] != "Received" {
		t.Fatalf("unexpected types param %v", reads[2].Params["types"])
	}
}

func TestGraphStoreSequenceAcrossInserts(t *testing.T) {
	mem := graph.NewMemoryClient()
	next := map[string]int64{}
	mem.WithWriteResponder(func(cypher string, _ map[string]any) (graph.Result, error) {
		for _, label := range []string{"User", "Visit"} {
			if strings.Contains(cypher, "Sequence {label: '"+label+"'}") {
				next[label]++
				return graph.Result{Records: []graph.Record{{"id": next[label]}}}, nil
			}
		}
		return graph.Result{}, nil
	})
	store := NewGraphStore(mem)
	ctx := context.Background()

	userID, err := store.InsertUser(ctx, "ana")
	if err != nil || userID != 1 {
		t.Fatalf("insert user = %d, %v", userID, err)
	}
	for want := int64(1); want <= 2; want++ {
		id, err := store.InsertVisit(ctx, domain.Visit{UserID: userID, StartTime: day, EndTime: day})
		if err != nil || id != want {
			t.Fatalf("insert visit = %d, %v; want %d", id, err, want)
		}
	}
}

func TestGraphStoreInitSchemaAndErrors(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := NewGraphStore(mem)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	if got := len(mem.WriteCalls()); got != len(schemaStatements) {
		t.Fatalf("expected %d schema statements, got %d", len(schemaStatements), got)
	}

	boom := errors.New("connection reset")
	mem.WithError(boom)
	if _, err := store.LocationIntervals(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected client error, got %v", err)
	}
}
