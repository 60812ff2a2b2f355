package domain

import "time"

// Event is a gift exchange owned by an organizer.
// DrawPerformed is a one-way latch; RosterVersion bumps on every roster change
// so a draw can detect that the roster moved underneath it. ParticipantIDs is
// written in the same step as the version bump.
type Event struct {
	EventID           string     `json:"id" dynamodbav:"event_id"`
	OrganizerIdentity string     `json:"organizer_email" dynamodbav:"organizer_identity"`
	Title             string     `json:"title" dynamodbav:"title"`
	Description       string     `json:"description" dynamodbav:"description"`
	MinValue          float64    `json:"min_value" dynamodbav:"min_value"`
	MaxValue          float64    `json:"max_value" dynamodbav:"max_value"`
	Date              time.Time  `json:"event_date" dynamodbav:"event_date"`
	DrawPerformed     bool       `json:"draw_performed" dynamodbav:"draw_performed"`
	DrawDate          *time.Time `json:"draw_date,omitempty" dynamodbav:"draw_date"`
	RosterVersion     int64      `json:"-" dynamodbav:"roster_version"`
	ParticipantIDs    []string   `json:"-" dynamodbav:"participant_ids,stringset,omitempty"`
	Pairs             []DrawPair `json:"-" dynamodbav:"pairs"`
	CreatedAt         time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt         time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// DrawPair assigns a receiver to a giver. Pairs are written once, with the draw latch.
type DrawPair struct {
	EventID    string    `json:"event_id" dynamodbav:"event_id"`
	GiverID    string    `json:"giver_id" dynamodbav:"giver_id"`
	ReceiverID string    `json:"receiver_id" dynamodbav:"receiver_id"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
}

type CreateEventRequest struct {
	Title       string  `json:"title" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=2000"`
	EventDate   string  `json:"event_date" validate:"required,datetime=2006-01-02"`
	MinValue    float64 `json:"min_value" validate:"gte=0"`
	MaxValue    float64 `json:"max_value" validate:"gtefield=MinValue"`
	Email       string  `json:"email" validate:"required,email"`
}

// UpdateEventRequest edits the descriptive fields of an undrawn event.
type UpdateEventRequest struct {
	Title       string  `json:"title" validate:"required,max=120"`
	Description string  `json:"description" validate:"max=2000"`
	EventDate   string  `json:"event_date" validate:"required,datetime=2006-01-02"`
	MinValue    float64 `json:"min_value" validate:"gte=0"`
	MaxValue    float64 `json:"max_value" validate:"gtefield=MinValue"`
}
