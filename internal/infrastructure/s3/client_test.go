package s3infra

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-secret-friend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawDocument_ResolvesNames(t *testing.T) {
	drawn := time.Date(2026, 12, 10, 20, 0, 0, 0, time.UTC)
	e := &domain.Event{
		EventID:           "e1",
		Title:             "Natal",
		OrganizerIdentity: "ana@example.com",
		DrawDate:          &drawn,
		Pairs: []domain.DrawPair{
			{GiverID: "p1", ReceiverID: "p2"},
			{GiverID: "p2", ReceiverID: "p1"},
		},
	}
	participants := []domain.Participant{{ParticipantID: "p1", Name: "Bia"}, {ParticipantID: "p2", Name: "Caio"}}

	b, err := drawDocument(e, participants)
	require.NoError(t, err)

	var doc archivedDraw
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, "e1", doc.EventID)
	assert.Equal(t, drawn, doc.DrawDate)
	require.Len(t, doc.Pairs, 2)
	assert.Equal(t, "Bia", doc.Pairs[0].GiverName)
	assert.Equal(t, "Caio", doc.Pairs[0].ReceiverName)
	assert.Equal(t, "draws/e1.json", drawKey(e))
}
