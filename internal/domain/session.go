package domain

import "time"

// Session is minted after a successful login verification.
// Token is the signed bearer handed to the client and is not persisted.
type Session struct {
	SessionID        string    `json:"id" dynamodbav:"session_id"`
	Identity         string    `json:"identity" dynamodbav:"identity"`
	Token            string    `json:"-" dynamodbav:"-"`
	RefreshToken     string    `json:"-" dynamodbav:"refresh_token"`
	RefreshExpiresAt int64     `json:"-" dynamodbav:"refresh_expires_at"`
	Enable           bool      `json:"enable" dynamodbav:"enable"`
	IssuedAt         time.Time `json:"issued_at" dynamodbav:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at" dynamodbav:"expires_at"`
	UpdatedAt        time.Time `json:"updated" dynamodbav:"updated_at"`
}
