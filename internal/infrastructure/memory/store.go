// Package memory is a mutex-guarded, process-local implementation of every
// repository the services depend on. It backs tests and STORE_DRIVER=memory.
package memory

import (
	"sync"

	"github.com/go-secret-friend/internal/domain"
)

type Store struct {
	mu           sync.Mutex
	codes        map[string]domain.VerificationCode
	sessions     map[string]domain.Session
	events       map[string]domain.Event
	participants map[string]domain.Participant
}

func NewStore() *Store {
	return &Store{
		codes:        make(map[string]domain.VerificationCode),
		sessions:     make(map[string]domain.Session),
		events:       make(map[string]domain.Event),
		participants: make(map[string]domain.Participant),
	}
}

// Codes, Sessions, Events and Participants expose the typed repositories.
// All of them share the store's single lock, so cross-entity writes are atomic.
func (s *Store) Codes() *CodeRepo               { return &CodeRepo{s: s} }
func (s *Store) Sessions() *SessionRepo         { return &SessionRepo{s: s} }
func (s *Store) Events() *EventRepo             { return &EventRepo{s: s} }
func (s *Store) Participants() *ParticipantRepo { return &ParticipantRepo{s: s} }

func cloneEvent(e domain.Event) *domain.Event {
	if e.Pairs != nil {
		e.Pairs = append([]domain.DrawPair(nil), e.Pairs...)
	}
	if e.ParticipantIDs != nil {
		e.ParticipantIDs = append([]string(nil), e.ParticipantIDs...)
	}
	if e.DrawDate != nil {
		d := *e.DrawDate
		e.DrawDate = &d
	}
	return &e
}
