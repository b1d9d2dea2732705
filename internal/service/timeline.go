package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

var dayLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02",
}

// TimelineService answers user and timeline queries.
type TimelineService struct {
	store  TimelineStore
	logger *slog.Logger
}

// NewTimelineService creates a TimelineService over store.
func NewTimelineService(store TimelineStore, logger *slog.Logger) *TimelineService {
	return &TimelineService{store: store, logger: logger.With("component", "timeline")}
}

// InitSchema creates the storage schema if it does not exist yet.
func (s *TimelineService) InitSchema(ctx context.Context) error {
	if err := s.store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	s.logger.Info("schema initialised")
	return nil
}

// CreateUser registers a user under name.
func (s *TimelineService) CreateUser(ctx context.Context, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("%w: user name is required", domain.ErrValidation)
	}
	id, err := s.store.InsertUser(ctx, name)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	s.logger.Info("user created", "user_id", id)
	return domain.User{ID: id, Name: name}, nil
}

// ListUsers returns every registered user.
func (s *TimelineService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// DayTimeline returns the movements, visits and payments of the UTC calendar
// day holding day, merged by start time. typeFilter selects payments as in
// domain.ParseTransactionTypes.
func (s *TimelineService) DayTimeline(ctx context.Context, userID int64, day time.Time, typeFilter string) ([]domain.TimelineEntry, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	day = day.UTC()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	window, err := s.store.DayWindow(ctx, userID, start, end, domain.ParseTransactionTypes(typeFilter))
	if err != nil {
		return nil, fmt.Errorf("query day %s: %w", start.Format("2006-01-02"), err)
	}
	return MergeTimeline(window), nil
}

// ParseDay reads a query date given either as an ISO instant
// (2023-01-05T00:00:00.000Z) or as a plain date.
func ParseDay(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", domain.ErrValidation)
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised date %q", domain.ErrValidation, value)
}
