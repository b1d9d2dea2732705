package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vanshika/lifetrace/internal/domain"
)

// memStore is an in-memory TimelineStore applying the same window rules as the
// real stores.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     []domain.User
	movements []domain.Movement
	waypoints []domain.Waypoint
	visits    []domain.Visit
	payments  []domain.PaymentTransaction

	intervalCalls int
	paymentErr    error
	lastTypes     []domain.TransactionType
}

func newMemStore() *memStore {
	return &memStore{}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) InitSchema(context.Context) error { return nil }
func (s *memStore) Ping(context.Context) error       { return nil }
func (s *memStore) Close(context.Context) error      { return nil }

func (s *memStore) InsertUser(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.users = append(s.users, domain.User{ID: id, Name: name})
	return id, nil
}

func (s *memStore) GetUser(_ context.Context, id int64) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
}

func (s *memStore) ListUsers(context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.User(nil), s.users...), nil
}

func (s *memStore) InsertMovement(_ context.Context, m domain.Movement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.id()
	m.Waypoints = nil
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func (s *memStore) InsertWaypoints(_ context.Context, waypoints []domain.Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waypoints = append(s.waypoints, waypoints...)
	return nil
}

func (s *memStore) InsertVisit(_ context.Context, v domain.Visit) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.id()
	s.visits = append(s.visits, v)
	return v.ID, nil
}

func (s *memStore) InsertPaymentTransactions(_ context.Context, txs []domain.PaymentTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paymentErr != nil {
		return s.paymentErr
	}
	for _, tx := range txs {
		tx.ID = s.id()
		s.payments = append(s.payments, tx)
	}
	return nil
}

func (s *memStore) LocationIntervals(_ context.Context, userID int64) ([]domain.LocationInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervalCalls++
	var out []domain.LocationInterval
	for _, m := range s.movements {
		if m.UserID == userID {
			out = append(out, domain.LocationInterval{Kind: domain.KindMovement, Location: m.Start, Start: m.StartTime, End: m.EndTime})
		}
	}
	for _, v := range s.visits {
		if v.UserID == userID {
			out = append(out, domain.LocationInterval{Kind: domain.KindVisit, Location: v.Location, Start: v.StartTime, End: v.EndTime})
		}
	}
	return out, nil
}

func (s *memStore) DayWindow(_ context.Context, userID int64, start, end time.Time, types []domain.TransactionType) (domain.DayWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTypes = types

	overlaps := func(from, to time.Time) bool {
		return !to.Before(start) && from.Before(end)
	}
	var window domain.DayWindow
	for _, m := range s.movements {
		if m.UserID != userID || !overlaps(m.StartTime, m.EndTime) {
			continue
		}
		for _, wp := range s.waypoints {
			if wp.MovementID == m.ID {
				m.Waypoints = append(m.Waypoints, wp)
			}
		}
		sort.Slice(m.Waypoints, func(i, j int) bool { return m.Waypoints[i].Order < m.Waypoints[j].Order })
		window.Movements = append(window.Movements, m)
	}
	for _, v := range s.visits {
		if v.UserID == userID && overlaps(v.StartTime, v.EndTime) {
			window.Visits = append(window.Visits, v)
		}
	}
	for _, p := range s.payments {
		if p.UserID != userID || p.Timestamp.Before(start) || !p.Timestamp.Before(end) {
			continue
		}
		for _, t := range types {
			if p.Type == t {
				window.Payments = append(window.Payments, p)
				break
			}
		}
	}
	return window, nil
}
