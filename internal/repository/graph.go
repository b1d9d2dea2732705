package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/lifetrace/internal/domain"
	"github.com/vanshika/lifetrace/internal/graph"
)

// GraphStore keeps the timeline in a property graph. Users own their records
// through MOVED, VISITED and PAID edges; a movement links its waypoints through
// HAS_WAYPOINT. Numeric ids come from one Sequence node per label.
type GraphStore struct {
	client graph.Client
}

// NewGraphStore instantiates a GraphStore backed by the supplied graph client.
func NewGraphStore(client graph.Client) *GraphStore {
	return &GraphStore{client: client}
}

// InitSchema creates the uniqueness constraints and window indexes.
func (s *GraphStore) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.client.ExecuteWrite(ctx, stmt, nil); err != nil {
			return fmt.Errorf("apply %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *GraphStore) Ping(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

func (s *GraphStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *GraphStore) InsertUser(ctx context.Context, name string) (int64, error) {
	res, err := s.client.ExecuteWrite(ctx, insertUserCypher, map[string]any{"name": name})
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return singleID(res, "user")
}

func (s *GraphStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	res, err := s.client.ExecuteRead(ctx, getUserCypher, map[string]any{"id": id})
	if err != nil {
		return domain.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	rec, ok := res.Single()
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return domain.User{ID: toInt64(rec["id"]), Name: toString(rec["name"])}, nil
}

func (s *GraphStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	res, err := s.client.ExecuteRead(ctx, listUsersCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.User, 0, len(res.Records))
	for _, rec := range res.Records {
		users = append(users, domain.User{ID: toInt64(rec["id"]), Name: toString(rec["name"])})
	}
	return users, nil
}

func (s *GraphStore) InsertMovement(ctx context.Context, m domain.Movement) (int64, error) {
	res, err := s.client.ExecuteWrite(ctx, insertMovementCypher, map[string]any{
		"userId":   m.UserID,
		"startLat": m.Start.Lat,
		"startLng": m.Start.Lng,
		"endLat":   m.End.Lat,
		"endLng":   m.End.Lng,
		"startTs":  toMillis(m.StartTime),
		"endTs":    toMillis(m.EndTime),
	})
	if err != nil {
		return 0, fmt.Errorf("insert movement: %w", err)
	}
	return singleID(res, fmt.Sprintf("user %d", m.UserID))
}

func (s *GraphStore) InsertWaypoints(ctx context.Context, waypoints []domain.Waypoint) error {
	if len(waypoints) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(waypoints))
	for _, wp := range waypoints {
		rows = append(rows, map[string]any{
			"movementId":    wp.MovementID,
			"userId":        wp.UserID,
			"waypointOrder": int64(wp.Order),
			"lat":           wp.Location.Lat,
			"lng":           wp.Location.Lng,
		})
	}
	if _, err := s.client.ExecuteWrite(ctx, insertWaypointsCypher, map[string]any{"waypoints": rows}); err != nil {
		return fmt.Errorf("insert waypoints: %w", err)
	}
	return nil
}

func (s *GraphStore) InsertVisit(ctx context.Context, v domain.Visit) (int64, error) {
	res, err := s.client.ExecuteWrite(ctx, insertVisitCypher, map[string]any{
		"userId":  v.UserID,
		"lat":     v.Location.Lat,
		"lng":     v.Location.Lng,
		"startTs": toMillis(v.StartTime),
		"endTs":   toMillis(v.EndTime),
	})
	if err != nil {
		return 0, fmt.Errorf("insert visit: %w", err)
	}
	return singleID(res, fmt.Sprintf("user %d", v.UserID))
}

func (s *GraphStore) InsertPaymentTransactions(ctx context.Context, txs []domain.PaymentTransaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(txs))
	for _, tx := range txs {
		row := map[string]any{
			"userId": tx.UserID,
			"type":   string(tx.Type),
			"amount": tx.Amount.String(),
			"ts":     toMillis(tx.Timestamp),
			"lat":    nil,
			"lng":    nil,
		}
		if tx.Location != nil {
			row["lat"] = tx.Location.Lat
			row["lng"] = tx.Location.Lng
		}
		rows = append(rows, row)
	}
	if _, err := s.client.ExecuteWrite(ctx, insertPaymentsCypher, map[string]any{"payments": rows}); err != nil {
		return fmt.Errorf("insert payment transactions: %w", err)
	}
	return nil
}

func (s *GraphStore) LocationIntervals(ctx context.Context, userID int64) ([]domain.LocationInterval, error) {
	res, err := s.client.ExecuteRead(ctx, locationIntervalsCypher, map[string]any{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("location intervals: %w", err)
	}
	intervals := make([]domain.LocationInterval, 0, len(res.Records))
	for _, rec := range res.Records {
		intervals = append(intervals, domain.LocationInterval{
			Kind:     domain.EntryKind(toString(rec["kind"])),
			Location: domain.Coordinates{Lat: toFloat64(rec["lat"]), Lng: toFloat64(rec["lng"])},
			Start:    fromMillis(toInt64(rec["startTs"])),
			End:      fromMillis(toInt64(rec["endTs"])),
		})
	}
	return intervals, nil
}

func (s *GraphStore) DayWindow(ctx context.Context, userID int64, start, end time.Time, types []domain.TransactionType) (domain.DayWindow, error) {
	params := map[string]any{
		"userId": userID,
		"start":  toMillis(start),
		"end":    toMillis(end),
	}
	var window domain.DayWindow

	res, err := s.client.ExecuteRead(ctx, windowMovementsCypher, params)
	if err != nil {
		return window, fmt.Errorf("window movements: %w", err)
	}
	for _, rec := range res.Records {
		window.Movements = append(window.Movements, movementFromRecord(rec, userID))
	}

	if res, err = s.client.ExecuteRead(ctx, windowVisitsCypher, params); err != nil {
		return window, fmt.Errorf("window visits: %w", err)
	}
	for _, rec := range res.Records {
		window.Visits = append(window.Visits, domain.Visit{
			ID:        toInt64(rec["id"]),
			UserID:    userID,
			Location:  domain.Coordinates{Lat: toFloat64(rec["lat"]), Lng: toFloat64(rec["lng"])},
			StartTime: fromMillis(toInt64(rec["startTs"])),
			EndTime:   fromMillis(toInt64(rec["endTs"])),
		})
	}

	if len(types) == 0 {
		return window, nil
	}
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}
	params["types"] = typeNames
	if res, err = s.client.ExecuteRead(ctx, windowPaymentsCypher, params); err != nil {
		return window, fmt.Errorf("window payments: %w", err)
	}
	for _, rec := range res.Records {
		p, err := paymentFromRecord(rec, userID)
		if err != nil {
			return window, err
		}
		window.Payments = append(window.Payments, p)
	}
	return window, nil
}

func movementFromRecord(rec graph.Record, userID int64) domain.Movement {
	m := domain.Movement{
		ID:        toInt64(rec["id"]),
		UserID:    userID,
		Start:     domain.Coordinates{Lat: toFloat64(rec["startLat"]), Lng: toFloat64(rec["startLng"])},
		End:       domain.Coordinates{Lat: toFloat64(rec["endLat"]), Lng: toFloat64(rec["endLng"])},
		StartTime: fromMillis(toInt64(rec["startTs"])),
		EndTime:   fromMillis(toInt64(rec["endTs"])),
	}
	list, _ := rec["waypoints"].([]any)
	for _, item := range list {
		wp, ok := item.(map[string]any)
		if !ok {
			continue
		}
		m.Waypoints = append(m.Waypoints, domain.Waypoint{
			MovementID: m.ID,
			UserID:     userID,
			Order:      int(toInt64(wp["waypointOrder"])),
			Location:   domain.Coordinates{Lat: toFloat64(wp["lat"]), Lng: toFloat64(wp["lng"])},
		})
	}
	return m
}

func paymentFromRecord(rec graph.Record, userID int64) (domain.PaymentTransaction, error) {
	p := domain.PaymentTransaction{
		ID:        toInt64(rec["id"]),
		UserID:    userID,
		Type:      domain.TransactionType(toString(rec["type"])),
		Timestamp: fromMillis(toInt64(rec["ts"])),
	}
	amount, err := decimal.NewFromString(toString(rec["amount"]))
	if err != nil {
		return p, fmt.Errorf("payment %d amount: %w", p.ID, err)
	}
	p.Amount = amount
	if rec["lat"] != nil && rec["lng"] != nil {
		p.Location = &domain.Coordinates{Lat: toFloat64(rec["lat"]), Lng: toFloat64(rec["lng"])}
	}
	return p, nil
}

// singleID reads the id returned by a create statement. No row means the
// owning node was not matched.
func singleID(res graph.Result, owner string) (int64, error) {
	rec, ok := res.Single()
	if !ok {
		return 0, fmt.Errorf("%s: %w", owner, domain.ErrNotFound)
	}
	return toInt64(rec["id"]), nil
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

var schemaStatements = []string{
	`CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`,
	`CREATE CONSTRAINT movement_id IF NOT EXISTS FOR (m:Movement) REQUIRE m.id IS UNIQUE`,
	`CREATE CONSTRAINT visit_id IF NOT EXISTS FOR (v:Visit) REQUIRE v.id IS UNIQUE`,
	`CREATE CONSTRAINT payment_id IF NOT EXISTS FOR (p:PaymentTransaction) REQUIRE p.id IS UNIQUE`,
	`CREATE CONSTRAINT sequence_label IF NOT EXISTS FOR (s:Sequence) REQUIRE s.label IS UNIQUE`,
	`CREATE INDEX movement_window IF NOT EXISTS FOR (m:Movement) ON (m.userId, m.startTs)`,
	`CREATE INDEX visit_window IF NOT EXISTS FOR (v:Visit) ON (v.userId, v.startTs)`,
	`CREATE INDEX payment_ts IF NOT EXISTS FOR (p:PaymentTransaction) ON (p.userId, p.ts)`,
}

const insertUserCypher = `
MERGE (seq:Sequence {label: 'User'})
ON CREATE SET seq.value = 0
SET seq.value = seq.value + 1
WITH seq.value AS id
CREATE (:User {id: id, name: $name})
RETURN id
`

const getUserCypher = `
MATCH (u:User {id: $id})
RETURN u.id AS id, u.name AS name
`

const listUsersCypher = `
MATCH (u:User)
RETURN u.id AS id, u.name AS name
ORDER BY u.id
`

const insertMovementCypher = `
MATCH (u:User {id: $userId})
MERGE (seq:Sequence {label: 'Movement'})
ON CREATE SET seq.value = 0
SET seq.value = seq.value + 1
WITH u, seq.value AS id
CREATE (u)-[:MOVED]->(:Movement {
	id: id, userId: $userId,
	startLat: $startLat, startLng: $startLng,
	endLat: $endLat, endLng: $endLng,
	startTs: $startTs, endTs: $endTs
})
RETURN id
`

const insertWaypointsCypher = `
UNWIND $waypoints AS wp
MATCH (m:Movement {id: wp.movementId})
CREATE (m)-[:HAS_WAYPOINT]->(:Waypoint {
	movementId: wp.movementId, userId: wp.userId,
	waypointOrder: wp.waypointOrder, lat: wp.lat, lng: wp.lng
})
`

const insertVisitCypher = `
MATCH (u:User {id: $userId})
MERGE (seq:Sequence {label: 'Visit'})
ON CREATE SET seq.value = 0
SET seq.value = seq.value + 1
WITH u, seq.value AS id
CREATE (u)-[:VISITED]->(:Visit {
	id: id, userId: $userId, lat: $lat, lng: $lng,
	startTs: $startTs, endTs: $endTs
})
RETURN id
`

// The sequence is advanced once for the whole batch; row i gets base+i+1.
const insertPaymentsCypher = `
MERGE (seq:Sequence {label: 'PaymentTransaction'})
ON CREATE SET seq.value = 0
WITH seq, seq.value AS base
SET seq.value = base + size($payments)
WITH base
UNWIND range(0, size($payments) - 1) AS i
WITH base + i + 1 AS id, $payments[i] AS p
MATCH (u:User {id: p.userId})
CREATE (u)-[:PAID]->(:PaymentTransaction {
	id: id, userId: p.userId, type: p.type, amount: p.amount,
	lat: p.lat, lng: p.lng, ts: p.ts
})
`

const locationIntervalsCypher = `
MATCH (m:Movement {userId: $userId})
RETURN 'movement' AS kind, m.startLat AS lat, m.startLng AS lng, m.startTs AS startTs, m.endTs AS endTs
UNION ALL
MATCH (v:Visit {userId: $userId})
RETURN 'visit' AS kind, v.lat AS lat, v.lng AS lng, v.startTs AS startTs, v.endTs AS endTs
`

const windowMovementsCypher = `
MATCH (m:Movement {userId: $userId})
WHERE m.endTs >= $start AND m.startTs < $end
OPTIONAL MATCH (m)-[:HAS_WAYPOINT]->(w:Waypoint)
WITH m, w
ORDER BY w.waypointOrder
WITH m, collect(w {.waypointOrder, .lat, .lng}) AS waypoints
RETURN m.id AS id, m.startLat AS startLat, m.startLng AS startLng,
       m.endLat AS endLat, m.endLng AS endLng,
       m.startTs AS startTs, m.endTs AS endTs, waypoints
ORDER BY startTs, id
`

const windowVisitsCypher = `
MATCH (v:Visit {userId: $userId})
WHERE v.endTs >= $start AND v.startTs < $end
RETURN v.id AS id, v.lat AS lat, v.lng AS lng, v.startTs AS startTs, v.endTs AS endTs
ORDER BY startTs, id
`

const windowPaymentsCypher = `
MATCH (p:PaymentTransaction {userId: $userId})
WHERE p.ts >= $start AND p.ts < $end AND p.type IN $types
RETURN p.id AS id, p.type AS type, p.amount AS amount, p.lat AS lat, p.lng AS lng, p.ts AS ts
ORDER BY ts, id
`
