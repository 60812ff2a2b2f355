package domain

import "time"

type Participant struct {
	ParticipantID  string    `json:"id" dynamodbav:"participant_id"`
	EventID        string    `json:"event_id" dynamodbav:"event_id"`
	Name           string    `json:"name" dynamodbav:"name"`
	WhatsAppNumber *string   `json:"whatsapp_number,omitempty" dynamodbav:"whatsapp_number"`
	Confirmed      bool      `json:"confirmed" dynamodbav:"confirmed"`
	GiftSuggestion *string   `json:"gift_suggestion,omitempty" dynamodbav:"gift_suggestion"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}

type AddParticipantRequest struct {
	Name string `json:"name" validate:"required,max=80"`
}

type SetConfirmedRequest struct {
	Confirmed bool `json:"confirmed"`
}

type GiftSuggestionRequest struct {
	GiftSuggestion string `json:"gift_suggestion" validate:"required,max=500"`
}
