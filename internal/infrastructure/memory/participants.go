package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/go-secret-friend/internal/domain"
)

type ParticipantRepo struct{ s *Store }

func (r *ParticipantRepo) Get(_ context.Context, participantID string) (*domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[participantID]
	if !ok {
		return nil, fmt.Errorf("participant not found: %w", domain.ErrNotFound)
	}
	return &p, nil
}

func (r *ParticipantRepo) ListByEvent(_ context.Context, eventID string) ([]domain.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Participant
	for _, p := range r.s.participants {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out, nil
}

func (r *ParticipantRepo) Add(_ context.Context, p *domain.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[p.ParticipantID]; ok {
		return fmt.Errorf("participant %s exists: %w", p.ParticipantID, domain.ErrConflict)
	}
	if err := r.lockRoster(p.EventID, func(e *domain.Event) {
		e.ParticipantIDs = append(e.ParticipantIDs, p.ParticipantID)
	}); err != nil {
		return err
	}
	r.s.participants[p.ParticipantID] = *p
	return nil
}

func (r *ParticipantRepo) Remove(_ context.Context, eventID, participantID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.member(eventID, participantID); err != nil {
		return err
	}
	if err := r.lockRoster(eventID, func(e *domain.Event) {
		e.ParticipantIDs = slices.DeleteFunc(e.ParticipantIDs, func(id string) bool { return id == participantID })
	}); err != nil {
		return err
	}
	delete(r.s.participants, participantID)
	return nil
}

func (r *ParticipantRepo) SetConfirmed(_ context.Context, eventID, participantID string, confirmed bool, phone *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.member(eventID, participantID)
	if err != nil {
		return err
	}
	if err := r.lockRoster(eventID, nil); err != nil {
		return err
	}
	p.Confirmed = confirmed
	if phone != nil {
		ph := *phone
		p.WhatsAppNumber = &ph
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.participants[participantID] = p
	return nil
}

func (r *ParticipantRepo) UpdateGiftSuggestion(_ context.Context, eventID, participantID, suggestion string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.member(eventID, participantID)
	if err != nil {
		return err
	}
	p.GiftSuggestion = &suggestion
	p.UpdatedAt = time.Now().UTC()
	r.s.participants[participantID] = p
	return nil
}

func (r *ParticipantRepo) member(eventID, participantID string) (domain.Participant, error) {
	p, ok := r.s.participants[participantID]
	if !ok || p.EventID != eventID {
		return domain.Participant{}, fmt.Errorf("participant not found: %w", domain.ErrNotFound)
	}
	return p, nil
}

// DeleteAll removes every participant of a deleted event.
func (r *ParticipantRepo) DeleteAll(_ context.Context, eventID string, _ []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, p := range r.s.participants {
		if p.EventID == eventID {
			delete(r.s.participants, id)
		}
	}
	return nil
}

// lockRoster checks the draw latch, bumps the roster version and applies
// change to the event. Caller holds mu.
func (r *ParticipantRepo) lockRoster(eventID string, change func(e *domain.Event)) error {
	e, ok := r.s.events[eventID]
	if !ok {
		return fmt.Errorf("event not found: %w", domain.ErrNotFound)
	}
	if e.DrawPerformed {
		return fmt.Errorf("event %s: %w", eventID, domain.ErrEventLocked)
	}
	e.RosterVersion++
	if change != nil {
		change(&e)
	}
	e.UpdatedAt = time.Now().UTC()
	r.s.events[eventID] = e
	return nil
}
