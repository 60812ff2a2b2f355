package dynamo

// DynamoDB attribute names used in key, condition and update expressions.
const (
	fieldCodeKey          = "code_key"
	fieldRevision         = "revision"
	fieldConsumed         = "consumed"
	fieldTTL              = "ttl"
	fieldEnable           = "enable"
	fieldUpdatedAt        = "updated_at"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldSessionID        = "session_id"
	fieldEventID          = "event_id"
	fieldOrganizer        = "organizer_identity"
	fieldCreatedAt        = "created_at"
	fieldTitle            = "title"
	fieldDescription      = "description"
	fieldMinValue         = "min_value"
	fieldMaxValue         = "max_value"
	fieldEventDate        = "event_date"
	fieldDrawPerformed    = "draw_performed"
	fieldDrawDate         = "draw_date"
	fieldPairs            = "pairs"
	fieldRosterVersion    = "roster_version"
	fieldParticipantIDs   = "participant_ids"
	fieldParticipantID    = "participant_id"
	fieldConfirmed        = "confirmed"
	fieldWhatsAppNumber   = "whatsapp_number"
	fieldGiftSuggestion   = "gift_suggestion"
)

// Global secondary indexes created by Bootstrap.
const (
	indexRefreshToken = "refresh_token-index"
	indexOrganizer    = "organizer_identity-index"
)
