package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/vanshika/lifetrace/internal/domain"
)

// SQLiteStore keeps the timeline in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// connection PRAGMAs. The schema is created by InitSchema.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; one connection serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// InitSchema applies the embedded migrations.
func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	if err := RunMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertUser(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO user (username) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var user domain.User
	err := s.db.QueryRowContext(ctx, `SELECT user_id, username FROM user WHERE user_id = ?`, id).
		Scan(&user.ID, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, username FROM user ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLiteStore) InsertMovement(ctx context.Context, m domain.Movement) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO movement (
			user_id, start_location_lat, start_location_lng,
			end_location_lat, end_location_lng, start_ts, end_ts
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.UserID, m.Start.Lat, m.Start.Lng, m.End.Lat, m.End.Lng,
		toMillis(m.StartTime), toMillis(m.EndTime),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertWaypoints writes the batch in one transaction.
func (s *SQLiteStore) InsertWaypoints(ctx context.Context, waypoints []domain.Waypoint) error {
	return s.batch(ctx, `
		INSERT INTO waypoint (user_id, movement_id, waypoint_order, location_lat, location_lng)
		VALUES (?, ?, ?, ?, ?)`,
		len(waypoints), func(i int) []any {
			wp := waypoints[i]
			return []any{wp.UserID, wp.MovementID, wp.Order, wp.Location.Lat, wp.Location.Lng}
		})
}

func (s *SQLiteStore) InsertVisit(ctx context.Context, v domain.Visit) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO visit (user_id, location_lat, location_lng, start_ts, end_ts)
		VALUES (?, ?, ?, ?, ?)`,
		v.UserID, v.Location.Lat, v.Location.Lng, toMillis(v.StartTime), toMillis(v.EndTime),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// InsertPaymentTransactions writes the batch in one transaction.
func (s *SQLiteStore) InsertPaymentTransactions(ctx context.Context, txs []domain.PaymentTransaction) error {
	return s.batch(ctx, `
		INSERT INTO payment_transaction (
			user_id, transaction_type, amount, location_lat, location_lng, transaction_ts
		) VALUES (?, ?, ?, ?, ?, ?)`,
		len(txs), func(i int) []any {
			tx := txs[i]
			lat, lng := nullCoordinates(tx.Location)
			return []any{tx.UserID, string(tx.Type), tx.Amount.String(), lat, lng, toMillis(tx.Timestamp)}
		})
}

func (s *SQLiteStore) batch(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LocationIntervals(ctx context.Context, userID int64) ([]domain.LocationInterval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT 'movement', start_location_lat, start_location_lng, start_ts, end_ts
		FROM movement WHERE user_id = ?
		UNION ALL
		SELECT 'visit', location_lat, location_lng, start_ts, end_ts
		FROM visit WHERE user_id = ?`,
		userID, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []domain.LocationInterval
	for rows.Next() {
		var (
			kind       string
			iv         domain.LocationInterval
			start, end int64
		)
		if err := rows.Scan(&kind, &iv.Location.Lat, &iv.Location.Lng, &start, &end); err != nil {
			return nil, err
		}
		iv.Kind = domain.EntryKind(kind)
		iv.Start, iv.End = fromMillis(start), fromMillis(end)
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func (s *SQLiteStore) DayWindow(ctx context.Context, userID int64, start, end time.Time, types []domain.TransactionType) (domain.DayWindow, error) {
	from, to := toMillis(start), toMillis(end)

	var window domain.DayWindow
	movements, err := s.windowMovements(ctx, userID, from, to)
	if err != nil {
		return window, fmt.Errorf("movements: %w", err)
	}
	window.Movements = movements

	if window.Visits, err = s.windowVisits(ctx, userID, from, to); err != nil {
		return window, fmt.Errorf("visits: %w", err)
	}
	if window.Payments, err = s.windowPayments(ctx, userID, from, to, types); err != nil {
		return window, fmt.Errorf("payments: %w", err)
	}
	return window, nil
}

func (s *SQLiteStore) windowMovements(ctx context.Context, userID, from, to int64) ([]domain.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT movement_id, start_location_lat, start_location_lng,
		       end_location_lat, end_location_lng, start_ts, end_ts
		FROM movement
		WHERE user_id = ? AND end_ts >= ? AND start_ts < ?
		ORDER BY start_ts, movement_id`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []domain.Movement
	index := make(map[int64]int)
	for rows.Next() {
		m := domain.Movement{UserID: userID}
		var startTs, endTs int64
		if err := rows.Scan(&m.ID, &m.Start.Lat, &m.Start.Lng, &m.End.Lat, &m.End.Lng, &startTs, &endTs); err != nil {
			return nil, err
		}
		m.StartTime, m.EndTime = fromMillis(startTs), fromMillis(endTs)
		index[m.ID] = len(movements)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(movements) == 0 {
		return movements, nil
	}

	wpRows, err := s.db.QueryContext(ctx, `
		SELECT w.movement_id, w.waypoint_order, w.location_lat, w.location_lng
		FROM waypoint w
		JOIN movement m ON m.movement_id = w.movement_id
		WHERE m.user_id = ? AND m.end_ts >= ? AND m.start_ts < ?
		ORDER BY w.movement_id, w.waypoint_order`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("waypoints: %w", err)
	}
	defer wpRows.Close()

	for wpRows.Next() {
		wp := domain.Waypoint{UserID: userID}
		if err := wpRows.Scan(&wp.MovementID, &wp.Order, &wp.Location.Lat, &wp.Location.Lng); err != nil {
			return nil, err
		}
		if i, ok := index[wp.MovementID]; ok {
			movements[i].Waypoints = append(movements[i].Waypoints, wp)
		}
	}
	return movements, wpRows.Err()
}

func (s *SQLiteStore) windowVisits(ctx context.Context, userID, from, to int64) ([]domain.Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT visit_id, location_lat, location_lng, start_ts, end_ts
		FROM visit
		WHERE user_id = ? AND end_ts >= ? AND start_ts < ?
		ORDER BY start_ts, visit_id`,
		userID, from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []domain.Visit
	for rows.Next() {
		v := domain.Visit{UserID: userID}
		var startTs, endTs int64
		if err := rows.Scan(&v.ID, &v.Location.Lat, &v.Location.Lng, &startTs, &endTs); err != nil {
			return nil, err
		}
		v.StartTime, v.EndTime = fromMillis(startTs), fromMillis(endTs)
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (s *SQLiteStore) windowPayments(ctx context.Context, userID, from, to int64, types []domain.TransactionType) ([]domain.PaymentTransaction, error) {
	if len(types) == 0 {
		return nil, nil
	}
	args := []any{userID, from, to}
	placeholders := make([]string, len(types))
	for i, t := range types {
		placeholders[i] = "?"
		args = append(args, string(t))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, transaction_type, amount, location_lat, location_lng, transaction_ts
		FROM payment_transaction
		WHERE user_id = ? AND transaction_ts >= ? AND transaction_ts < ?
		  AND transaction_type IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY transaction_ts, transaction_id`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []domain.PaymentTransaction
	for rows.Next() {
		p := domain.PaymentTransaction{UserID: userID}
		var (
			kind, amount string
			lat, lng     sql.NullFloat64
			ts           int64
		)
		if err := rows.Scan(&p.ID, &kind, &amount, &lat, &lng, &ts); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("payment %d amount %q: %w", p.ID, amount, err)
		}
		p.Type = domain.TransactionType(kind)
		p.Location = coordinatesFromNull(lat, lng)
		p.Timestamp = fromMillis(ts)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullCoordinates(c *domain.Coordinates) (sql.NullFloat64, sql.NullFloat64) {
	if c == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: c.Lat, Valid: true}, sql.NullFloat64{Float64: c.Lng, Valid: true}
}

func coordinatesFromNull(lat, lng sql.NullFloat64) *domain.Coordinates {
	if !lat.Valid || !lng.Valid {
		return nil
	}
	return &domain.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
}
