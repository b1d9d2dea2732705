package service

import (
	"context"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

// TimelineStore is the storage contract required by the import and timeline
// services. GetUser returns an error wrapping domain.ErrNotFound when the user
// does not exist.
type TimelineStore interface {
	InitSchema(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error

	InsertUser(ctx context.Context, name string) (int64, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	InsertMovement(ctx context.Context, m domain.Movement) (int64, error)
	InsertWaypoints(ctx context.Context, waypoints []domain.Waypoint) error
	InsertVisit(ctx context.Context, v domain.Visit) (int64, error)
	InsertPaymentTransactions(ctx context.Context, txs []domain.PaymentTransaction) error

	// LocationIntervals returns every movement and visit of the user, unsorted.
	LocationIntervals(ctx context.Context, userID int64) ([]domain.LocationInterval, error)
	// DayWindow returns the records overlapping [start, end). Movements carry
	// their waypoints in order; payments are limited to the given types.
	DayWindow(ctx context.Context, userID int64, start, end time.Time, types []domain.TransactionType) (domain.DayWindow, error)
}
