package domain

import "time"

// Channel is the out-of-band medium a code travels on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// Purpose is what a successful verification unlocks.
type Purpose string

const (
	PurposeLogin       Purpose = "login"
	PurposePhoneVerify Purpose = "phone-verify"
)

// Valid reports whether p is a supported purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposePhoneVerify
}

// CodeKey identifies the single active code slot for an identifier.
type CodeKey struct {
	Identifier string
	Channel    Channel
	Purpose    Purpose
}

// String returns the composite storage key, e.g. "a@x.com#email#login".
func (k CodeKey) String() string {
	return k.Identifier + "#" + string(k.Channel) + "#" + string(k.Purpose)
}

// VerificationCode is the stored state of one issued code.
// CodeHash holds a bcrypt hash of the 6-digit value; the plaintext never reaches storage.
// Revision changes on every write and is the compare-and-swap token.
type VerificationCode struct {
	Identifier string    `json:"identifier" dynamodbav:"identifier"`
	Channel    Channel   `json:"channel" dynamodbav:"channel"`
	Purpose    Purpose   `json:"purpose" dynamodbav:"purpose"`
	CodeHash   string    `json:"-" dynamodbav:"code_hash"`
	Subject    string    `json:"subject,omitempty" dynamodbav:"subject"`
	CreatedAt  time.Time `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" dynamodbav:"expires_at"`
	Consumed   bool      `json:"consumed" dynamodbav:"consumed"`
	Attempts   int       `json:"attempts" dynamodbav:"attempts"`
	Revision   string    `json:"-" dynamodbav:"revision"`
}

// Key returns the slot this record occupies.
func (v *VerificationCode) Key() CodeKey {
	return CodeKey{Identifier: v.Identifier, Channel: v.Channel, Purpose: v.Purpose}
}

// Expired reports whether the code is past its validity window at now.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// Live reports whether the record can still be verified at now.
func (v *VerificationCode) Live(now time.Time) bool {
	return !v.Consumed && !v.Expired(now)
}
