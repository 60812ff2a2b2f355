package draw

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/go-secret-friend/internal/domain"
	"github.com/go-secret-friend/internal/infrastructure/metrics"
)

const (
	defaultMaxAttempts = 100
	lockStripes        = 64
)

// EventStore commits a draw with one conditional write: it must fail with
// domain.ErrDrawAlreadyPerformed when the latch is set and with
// domain.ErrConcurrentModification when rosterVersion is stale.
type EventStore interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	CommitDraw(ctx context.Context, eventID string, rosterVersion int64, pairs []domain.DrawPair, drawDate time.Time) error
}

type ParticipantLister interface {
	ListByEvent(ctx context.Context, eventID string) ([]domain.Participant, error)
}

// Archive keeps a durable copy of a committed draw outside the primary store.
type Archive interface {
	SaveDraw(ctx context.Context, e *domain.Event, participants []domain.Participant) error
}

// Notifier sends a WhatsApp message to a normalized phone number.
type Notifier interface {
	Notify(ctx context.Context, phoneDigits, body string) error
}

type Result struct {
	EventID  string            `json:"event_id"`
	Pairs    []domain.DrawPair `json:"pairs"`
	DrawDate time.Time         `json:"draw_date"`
}

type Service interface {
	PerformDraw(ctx context.Context, identity, eventID string) (*Result, error)
	// Wait blocks until background archive and notification work has finished.
	Wait()
}

type ServiceDeps struct {
	EventRepo       EventStore
	ParticipantRepo ParticipantLister
	Archive         Archive
	Notifier        Notifier
	// NotifyParticipants enables WhatsApp messages to givers after a draw.
	NotifyParticipants bool
	MaxAttempts        int
	Rand               IntN
	Clock              func() time.Time
}

type service struct {
	events       EventStore
	participants ParticipantLister
	archive      Archive
	notifier     Notifier
	notify       bool
	maxAttempts  int
	rng          IntN
	now          func() time.Time

	locks [lockStripes]sync.Mutex
	bg    sync.WaitGroup
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		events:       deps.EventRepo,
		participants: deps.ParticipantRepo,
		archive:      deps.Archive,
		notifier:     deps.Notifier,
		notify:       deps.NotifyParticipants,
		maxAttempts:  deps.MaxAttempts,
		rng:          deps.Rand,
		now:          deps.Clock,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.rng == nil {
		s.rng = globalRand{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) PerformDraw(ctx context.Context, identity, eventID string) (*Result, error) {
	res, err := s.performDraw(ctx, identity, eventID)
	metrics.DrawsTotal.WithLabelValues(metrics.Result(domain.Reason(err), err)).Inc()
	return res, err
}

func (s *service) performDraw(ctx context.Context, identity, eventID string) (*Result, error) {
	mu := s.lock(eventID)
	mu.Lock()
	defer mu.Unlock()

	var (
		e      *domain.Event
		roster []domain.Participant
		pairs  []domain.DrawPair
		err    error
	)
	for attempt := 0; attempt < 2; attempt++ {
		e, roster, pairs, err = s.tryDraw(ctx, identity, eventID)
		if !errors.Is(err, domain.ErrConcurrentModification) {
			break
		}
		slog.Warn("roster changed during draw, retrying", "event_id", eventID)
	}
	if err != nil {
		return nil, err
	}

	drawDate := *e.DrawDate
	slog.Info("draw committed", "event_id", eventID, "participants", len(pairs))
	s.afterCommit(ctx, e, roster)
	return &Result{EventID: eventID, Pairs: pairs, DrawDate: drawDate}, nil
}

func (s *service) tryDraw(ctx context.Context, identity, eventID string) (*domain.Event, []domain.Participant, []domain.DrawPair, error) {
	e, err := s.events.Get(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}
	if e.OrganizerIdentity != identity {
		return nil, nil, nil, fmt.Errorf("event %s belongs to another organizer: %w", eventID, domain.ErrForbidden)
	}
	if e.DrawPerformed {
		return nil, nil, nil, fmt.Errorf("event %s: %w", eventID, domain.ErrDrawAlreadyPerformed)
	}
	roster, err := s.participants.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(roster) < 2 {
		return nil, nil, nil, fmt.Errorf("event %s has %d participants: %w", eventID, len(roster), domain.ErrInsufficientParticipants)
	}
	ids := make([]string, len(roster))
	for i, p := range roster {
		if !p.Confirmed {
			return nil, nil, nil, fmt.Errorf("participant %s is pending: %w", p.ParticipantID, domain.ErrNotAllConfirmed)
		}
		ids[i] = p.ParticipantID
	}

	assigned, err := Derange(ids, s.rng, s.maxAttempts)
	if err != nil {
		return nil, nil, nil, err
	}
	now := s.now()
	pairs := make([]domain.DrawPair, len(assigned))
	for i, a := range assigned {
		pairs[i] = domain.DrawPair{EventID: eventID, GiverID: a.Giver, ReceiverID: a.Receiver, CreatedAt: now}
	}
	if err := s.events.CommitDraw(ctx, eventID, e.RosterVersion, pairs, now); err != nil {
		return nil, nil, nil, err
	}
	e.DrawPerformed = true
	e.DrawDate = &now
	e.Pairs = pairs
	return e, roster, pairs, nil
}

// lock returns the stripe guarding eventID. Events sharing a stripe serialize
// their draws.
func (s *service) lock(eventID string) *sync.Mutex {
	return &s.locks[stripe(eventID)]
}

func stripe(eventID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(eventID))
	return int(h.Sum32() % lockStripes)
}

// afterCommit archives and notifies in the background. Failures are logged
// and never affect the committed draw.
func (s *service) afterCommit(ctx context.Context, e *domain.Event, roster []domain.Participant) {
	if s.archive == nil && (s.notifier == nil || !s.notify) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if s.archive != nil {
			if err := s.archive.SaveDraw(ctx, e, roster); err != nil {
				slog.Error("failed to archive draw", "event_id", e.EventID, "err", err)
			}
		}
		if s.notifier != nil && s.notify {
			s.notifyGivers(ctx, e, roster)
		}
	}()
}

func (s *service) notifyGivers(ctx context.Context, e *domain.Event, roster []domain.Participant) {
	byID := make(map[string]domain.Participant, len(roster))
	for _, p := range roster {
		byID[p.ParticipantID] = p
	}
	sent := 0
	for _, pair := range e.Pairs {
		giver := byID[pair.GiverID]
		if giver.WhatsAppNumber == nil || *giver.WhatsAppNumber == "" {
			continue
		}
		body := fmt.Sprintf("Hi %s! The draw for \"%s\" is done. Your secret friend is %s.", giver.Name, e.Title, byID[pair.ReceiverID].Name)
		if err := s.notifier.Notify(ctx, *giver.WhatsAppNumber, body); err != nil {
			slog.Warn("failed to notify giver", "event_id", e.EventID, "participant_id", giver.ParticipantID, "err", err)
			continue
		}
		sent++
	}
	slog.Info("draw notifications sent", "event_id", e.EventID, "sent", sent, "participants", len(roster))
}

func (s *service) Wait() { s.bg.Wait() }
