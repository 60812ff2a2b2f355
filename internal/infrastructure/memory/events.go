package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-secret-friend/internal/domain"
)

type EventRepo struct{ s *Store }

func (r *EventRepo) Put(_ context.Context, e *domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.events[e.EventID]; ok {
		return fmt.Errorf("event %s exists: %w", e.EventID, domain.ErrConflict)
	}
	r.s.events[e.EventID] = *cloneEvent(*e)
	return nil
}

func (r *EventRepo) Get(_ context.Context, eventID string) (*domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	return cloneEvent(e), nil
}

func (r *EventRepo) ListByOrganizer(_ context.Context, identity string) ([]domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Event
	for _, e := range r.s.events {
		if e.OrganizerIdentity == identity {
			out = append(out, *cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CommitDraw writes the pairs and flips the latch in one step, provided the
// event is undrawn and its roster has not changed since rosterVersion was read.
func (r *EventRepo) CommitDraw(_ context.Context, eventID string, rosterVersion int64, pairs []domain.DrawPair, drawDate time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	switch {
	case !ok:
		return fmt.Errorf("event not found: %w", domain.ErrNotFound)
	case e.DrawPerformed:
		return fmt.Errorf("event %s: %w", eventID, domain.ErrDrawAlreadyPerformed)
	case e.RosterVersion != rosterVersion:
		return fmt.Errorf("roster of event %s changed: %w", eventID, domain.ErrConcurrentModification)
	}
	d := drawDate
	e.DrawPerformed = true
	e.DrawDate = &d
	e.Pairs = append([]domain.DrawPair(nil), pairs...)
	e.UpdatedAt = drawDate
	r.s.events[eventID] = e
	return nil
}

func (r *EventRepo) Update(_ context.Context, e *domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.events[e.EventID]
	switch {
	case !ok:
		return fmt.Errorf("event not found: %w", domain.ErrNotFound)
	case cur.DrawPerformed:
		return fmt.Errorf("event %s: %w", e.EventID, domain.ErrEventLocked)
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.MinValue = e.MinValue
	cur.MaxValue = e.MaxValue
	cur.Date = e.Date
	cur.UpdatedAt = e.UpdatedAt
	r.s.events[e.EventID] = cur
	return nil
}

func (r *EventRepo) Delete(_ context.Context, eventID string) (*domain.Event, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	delete(r.s.events, eventID)
	return cloneEvent(e), nil
}
