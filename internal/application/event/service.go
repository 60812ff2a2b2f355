package event

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-secret-friend/internal/application/otp"
	"github.com/go-secret-friend/internal/domain"
	"github.com/go-secret-friend/internal/pkg/id"
	"github.com/go-secret-friend/internal/pkg/identifier"
	"github.com/go-secret-friend/internal/pkg/validate"
)

const dateLayout = "2006-01-02"

// EventStore persists events. Update writes the descriptive fields only and
// fails with domain.ErrEventLocked once the draw latch is set. Delete returns
// the removed event so its roster can be cleaned up.
type EventStore interface {
	Put(ctx context.Context, e *domain.Event) error
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	ListByOrganizer(ctx context.Context, identity string) ([]domain.Event, error)
	Update(ctx context.Context, e *domain.Event) error
	Delete(ctx context.Context, eventID string) (*domain.Event, error)
}

// ParticipantStore writes roster changes conditionally on the event's draw
// latch and bumps the event's roster version in the same atomic step.
// GiftSuggestion updates are not roster changes.
type ParticipantStore interface {
	Get(ctx context.Context, participantID string) (*domain.Participant, error)
	ListByEvent(ctx context.Context, eventID string) ([]domain.Participant, error)
	Add(ctx context.Context, p *domain.Participant) error
	Remove(ctx context.Context, eventID, participantID string) error
	SetConfirmed(ctx context.Context, eventID, participantID string, confirmed bool, phone *string) error
	UpdateGiftSuggestion(ctx context.Context, eventID, participantID, suggestion string) error
	DeleteAll(ctx context.Context, eventID string, participantIDs []string) error
}

// Notifier sends a WhatsApp message to a normalized phone number.
type Notifier interface {
	Notify(ctx context.Context, phoneDigits, body string) error
}

// ReminderResult counts the outcome of a gift-suggestion reminder round.
type ReminderResult struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Codes issues and checks phone-verify codes.
type Codes interface {
	Issue(ctx context.Context, req otp.IssueRequest) (otp.IssueResult, error)
	Verify(ctx context.Context, req otp.VerifyRequest) (otp.VerifyResult, error)
}

type Service interface {
	Create(ctx context.Context, req domain.CreateEventRequest) (*domain.Event, error)
	Get(ctx context.Context, eventID string) (*domain.Event, error)
	GetOwned(ctx context.Context, identity, eventID string) (*domain.Event, error)
	ListByOrganizer(ctx context.Context, identity string) ([]domain.Event, error)
	Update(ctx context.Context, identity, eventID string, req domain.UpdateEventRequest) (*domain.Event, error)
	Delete(ctx context.Context, identity, eventID string) error
	SendSuggestionReminder(ctx context.Context, identity, eventID string) (ReminderResult, error)
	ListParticipants(ctx context.Context, eventID string, confirmed *bool) ([]domain.Participant, error)
	AddParticipant(ctx context.Context, identity, eventID string, req domain.AddParticipantRequest) (*domain.Participant, error)
	RemoveParticipant(ctx context.Context, identity, eventID, participantID string) error
	SetConfirmed(ctx context.Context, identity, eventID, participantID string, confirmed bool) error
	UpdateGiftSuggestion(ctx context.Context, eventID, participantID string, req domain.GiftSuggestionRequest) (*domain.Participant, error)
	RequestPhoneCode(ctx context.Context, eventID, participantID, rawPhone string) (otp.IssueResult, error)
	VerifyPhoneCode(ctx context.Context, eventID, participantID, rawPhone, code string) (otp.VerifyResult, error)
	Results(ctx context.Context, identity, eventID string) ([]domain.DrawPair, error)
}

type ServiceDeps struct {
	EventRepo       EventStore
	ParticipantRepo ParticipantStore
	Codes           Codes
	Notifier        Notifier
	// ResultsBeforeDate lets organizers read pairs before the event date.
	ResultsBeforeDate bool
	Clock             func() time.Time
}

type service struct {
	eventRepo         EventStore
	participantRepo   ParticipantStore
	codes             Codes
	notifier          Notifier
	resultsBeforeDate bool
	now               func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		eventRepo:         deps.EventRepo,
		participantRepo:   deps.ParticipantRepo,
		codes:             deps.Codes,
		notifier:          deps.Notifier,
		resultsBeforeDate: deps.ResultsBeforeDate,
		now:               deps.Clock,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *service) Create(ctx context.Context, req domain.CreateEventRequest) (*domain.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	organizer, err := identifier.Normalize(req.Email, domain.ChannelEmail)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		return nil, fmt.Errorf("event_date must be YYYY-MM-DD: %w", domain.ErrValidation)
	}
	now := s.now()
	e := &domain.Event{
		EventID:           id.New(),
		OrganizerIdentity: organizer,
		Title:             req.Title,
		Description:       strings.TrimSpace(req.Description),
		MinValue:          req.MinValue,
		MaxValue:          req.MaxValue,
		Date:              date,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.eventRepo.Put(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	slog.Info("event created", "event_id", e.EventID)
	return e, nil
}

func (s *service) Get(ctx context.Context, eventID string) (*domain.Event, error) {
	return s.eventRepo.Get(ctx, eventID)
}

func (s *service) GetOwned(ctx context.Context, identity, eventID string) (*domain.Event, error) {
	e, err := s.eventRepo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if e.OrganizerIdentity != identity {
		return nil, fmt.Errorf("event %s belongs to another organizer: %w", eventID, domain.ErrForbidden)
	}
	return e, nil
}

func (s *service) ListByOrganizer(ctx context.Context, identity string) ([]domain.Event, error) {
	return s.eventRepo.ListByOrganizer(ctx, identity)
}

// Update is refused once the draw has run.
func (s *service) Update(ctx context.Context, identity, eventID string, req domain.UpdateEventRequest) (*domain.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, req.EventDate)
	if err != nil {
		return nil, fmt.Errorf("event_date must be YYYY-MM-DD: %w", domain.ErrValidation)
	}
	e, err := s.GetOwned(ctx, identity, eventID)
	if err != nil {
		return nil, err
	}
	if e.DrawPerformed {
		return nil, fmt.Errorf("event %s: %w", eventID, domain.ErrEventLocked)
	}
	e.Title = req.Title
	e.Description = strings.TrimSpace(req.Description)
	e.MinValue = req.MinValue
	e.MaxValue = req.MaxValue
	e.Date = date
	e.UpdatedAt = s.now()
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	slog.Info("event updated", "event_id", eventID)
	return e, nil
}

// Delete removes the event and then its participants. It is allowed after the draw.
func (s *service) Delete(ctx context.Context, identity, eventID string) error {
	if _, err := s.GetOwned(ctx, identity, eventID); err != nil {
		return err
	}
	old, err := s.eventRepo.Delete(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.participantRepo.DeleteAll(ctx, eventID, old.ParticipantIDs); err != nil {
		slog.Error("event deleted but participants remain", "event_id", eventID, "err", err)
		return fmt.Errorf("delete participants of %s: %w", eventID, err)
	}
	slog.Info("event deleted", "event_id", eventID, "participants", len(old.ParticipantIDs))
	return nil
}

// SendSuggestionReminder asks every confirmed participant with a WhatsApp
// number to leave a gift suggestion. Individual send failures are counted, not returned.
func (s *service) SendSuggestionReminder(ctx context.Context, identity, eventID string) (ReminderResult, error) {
	e, err := s.GetOwned(ctx, identity, eventID)
	if err != nil {
		return ReminderResult{}, err
	}
	if s.notifier == nil {
		return ReminderResult{}, fmt.Errorf("no whatsapp transport configured: %w", domain.ErrDeliveryFailed)
	}
	roster, err := s.participantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return ReminderResult{}, err
	}
	var res ReminderResult
	for _, p := range roster {
		if !p.Confirmed || p.WhatsAppNumber == nil || *p.WhatsAppNumber == "" {
			res.Skipped++
			continue
		}
		if err := s.notifier.Notify(ctx, *p.WhatsAppNumber, reminderMessage(e, p)); err != nil {
			slog.Warn("failed to send suggestion reminder", "event_id", eventID, "participant_id", p.ParticipantID, "err", err)
			res.Failed++
			continue
		}
		res.Sent++
	}
	slog.Info("suggestion reminders sent", "event_id", eventID, "sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed)
	return res, nil
}

func reminderMessage(e *domain.Event, p domain.Participant) string {
	if p.GiftSuggestion != nil && *p.GiftSuggestion != "" {
		return fmt.Sprintf("Hi %s! \"%s\" is on %s. Your gift suggestion is \"%s\"; you can still change it.",
			p.Name, e.Title, e.Date.Format(dateLayout), *p.GiftSuggestion)
	}
	return fmt.Sprintf("Hi %s! \"%s\" is on %s. Leave a gift suggestion so your secret friend knows what to get you.",
		p.Name, e.Title, e.Date.Format(dateLayout))
}

func (s *service) ListParticipants(ctx context.Context, eventID string, confirmed *bool) ([]domain.Participant, error) {
	if _, err := s.eventRepo.Get(ctx, eventID); err != nil {
		return nil, err
	}
	all, err := s.participantRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if confirmed == nil {
		return all, nil
	}
	out := make([]domain.Participant, 0, len(all))
	for _, p := range all {
		if p.Confirmed == *confirmed {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *service) AddParticipant(ctx context.Context, identity, eventID string, req domain.AddParticipantRequest) (*domain.Participant, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	if _, err := s.GetOwned(ctx, identity, eventID); err != nil {
		return nil, err
	}
	now := s.now()
	p := &domain.Participant{
		ParticipantID: id.New(),
		EventID:       eventID,
		Name:          req.Name,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.participantRepo.Add(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) RemoveParticipant(ctx context.Context, identity, eventID, participantID string) error {
	if _, err := s.GetOwned(ctx, identity, eventID); err != nil {
		return err
	}
	return s.participantRepo.Remove(ctx, eventID, participantID)
}

func (s *service) SetConfirmed(ctx context.Context, identity, eventID, participantID string, confirmed bool) error {
	if _, err := s.GetOwned(ctx, identity, eventID); err != nil {
		return err
	}
	return s.participantRepo.SetConfirmed(ctx, eventID, participantID, confirmed, nil)
}

// UpdateGiftSuggestion is open to confirmed participants only and stays
// allowed after the draw.
func (s *service) UpdateGiftSuggestion(ctx context.Context, eventID, participantID string, req domain.GiftSuggestionRequest) (*domain.Participant, error) {
	req.GiftSuggestion = strings.TrimSpace(req.GiftSuggestion)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	p, err := s.member(ctx, eventID, participantID)
	if err != nil {
		return nil, err
	}
	if !p.Confirmed {
		return nil, fmt.Errorf("participant %s has not confirmed: %w", participantID, domain.ErrForbidden)
	}
	if err := s.participantRepo.UpdateGiftSuggestion(ctx, eventID, participantID, req.GiftSuggestion); err != nil {
		return nil, err
	}
	p.GiftSuggestion = &req.GiftSuggestion
	return p, nil
}

func (s *service) RequestPhoneCode(ctx context.Context, eventID, participantID, rawPhone string) (otp.IssueResult, error) {
	e, err := s.eventRepo.Get(ctx, eventID)
	if err != nil {
		return otp.IssueResult{}, err
	}
	if e.DrawPerformed {
		return otp.IssueResult{}, fmt.Errorf("event %s: %w", eventID, domain.ErrEventLocked)
	}
	if _, err := s.member(ctx, eventID, participantID); err != nil {
		return otp.IssueResult{}, err
	}
	return s.codes.Issue(ctx, otp.IssueRequest{
		Identifier: rawPhone,
		Channel:    domain.ChannelWhatsApp,
		Purpose:    domain.PurposePhoneVerify,
		Subject:    participantID,
	})
}

func (s *service) VerifyPhoneCode(ctx context.Context, eventID, participantID, rawPhone, code string) (otp.VerifyResult, error) {
	if _, err := s.member(ctx, eventID, participantID); err != nil {
		return otp.VerifyResult{}, err
	}
	return s.codes.Verify(ctx, otp.VerifyRequest{
		Identifier: rawPhone,
		Channel:    domain.ChannelWhatsApp,
		Purpose:    domain.PurposePhoneVerify,
		Code:       code,
		Subject:    participantID,
	})
}

// Results returns the draw pairs to the organizer once the event date has
// been reached, or immediately when early results are enabled.
func (s *service) Results(ctx context.Context, identity, eventID string) ([]domain.DrawPair, error) {
	e, err := s.GetOwned(ctx, identity, eventID)
	if err != nil {
		return nil, err
	}
	if !e.DrawPerformed {
		return nil, fmt.Errorf("event %s has no draw yet: %w", eventID, domain.ErrNotFound)
	}
	if !s.resultsBeforeDate && s.now().Before(e.Date) {
		return nil, fmt.Errorf("results hidden until %s: %w", e.Date.Format(dateLayout), domain.ErrForbidden)
	}
	return e.Pairs, nil
}

func (s *service) member(ctx context.Context, eventID, participantID string) (*domain.Participant, error) {
	p, err := s.participantRepo.Get(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.EventID != eventID {
		return nil, fmt.Errorf("participant not in event %s: %w", eventID, domain.ErrNotFound)
	}
	return p, nil
}

// EventReader loads a single event.
type EventReader interface {
	Get(ctx context.Context, eventID string) (*domain.Event, error)
}

// PhoneConfirmer marks a participant confirmed once their WhatsApp number has
// been verified, recording the number on the participant.
type PhoneConfirmer struct {
	events       EventReader
	participants ParticipantStore
}

func NewPhoneConfirmer(events EventReader, participants ParticipantStore) *PhoneConfirmer {
	return &PhoneConfirmer{events: events, participants: participants}
}

// CanConfirm reports whether the participant's event still accepts roster changes.
func (c *PhoneConfirmer) CanConfirm(ctx context.Context, participantID string) error {
	p, err := c.participants.Get(ctx, participantID)
	if err != nil {
		return err
	}
	e, err := c.events.Get(ctx, p.EventID)
	if err != nil {
		return err
	}
	if e.DrawPerformed {
		return fmt.Errorf("event %s: %w", e.EventID, domain.ErrEventLocked)
	}
	return nil
}

func (c *PhoneConfirmer) ConfirmPhone(ctx context.Context, participantID, phone string) error {
	p, err := c.participants.Get(ctx, participantID)
	if err != nil {
		return err
	}
	if err := c.participants.SetConfirmed(ctx, p.EventID, participantID, true, &phone); err != nil {
		return fmt.Errorf("confirm participant %s: %w", participantID, err)
	}
	slog.Info("participant confirmed by whatsapp", "event_id", p.EventID, "participant_id", participantID)
	return nil
}
