package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-secret-friend/internal/application/draw"
	"github.com/go-secret-friend/internal/application/event"
	"github.com/go-secret-friend/internal/application/otp"
	"github.com/go-secret-friend/internal/application/session"
	"github.com/go-secret-friend/internal/config"
	"github.com/go-secret-friend/internal/domain"
	jwtinfra "github.com/go-secret-friend/internal/infrastructure/jwt"
	"github.com/go-secret-friend/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type lastCode struct {
	mu       sync.Mutex
	code     string
	notified []string
}

func (d *lastCode) Send(_ context.Context, _ string, _ domain.Channel, code string) domain.DeliveryOutcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.code = code
	return domain.DeliveryOutcome{Delivered: true, Provider: "test"}
}

func (d *lastCode) Notify(_ context.Context, phoneDigits, body string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notified = append(d.notified, phoneDigits)
	return nil
}

func (d *lastCode) notifications() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notified...)
}

func (d *lastCode) get() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.code
}

type app struct {
	handler http.Handler
	codes   *lastCode
	draws   draw.Service
}

func newApp(t *testing.T) *app {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	store := memory.NewStore()
	delivered := &lastCode{}
	sessions := session.NewService(session.ServiceDeps{
		SessionRepo: store.Sessions(),
		JWTProvider: jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour),
		TokenTTL:    time.Hour,
	})
	codes := otp.NewService(otp.ServiceDeps{
		Store:     store.Codes(),
		Deliverer: delivered,
		Minter:    sessions,
		Confirmer: event.NewPhoneConfirmer(store.Events(), store.Participants()),
		Config:    otp.Config{TTL: 10 * time.Minute, MaxAttempts: 5, Cooldown: 30 * time.Second, HashCost: bcrypt.MinCost},
	})
	events := event.NewService(event.ServiceDeps{
		EventRepo:         store.Events(),
		ParticipantRepo:   store.Participants(),
		Codes:             codes,
		Notifier:          delivered,
		ResultsBeforeDate: true,
	})
	draws := draw.NewService(draw.ServiceDeps{
		EventRepo:       store.Events(),
		ParticipantRepo: store.Participants(),
	})
	h := NewRouter(&config.Config{AllowedOrigins: []string{"*"}}, &Deps{
		Sessions: sessions,
		Codes:    codes,
		Events:   events,
		Draws:    draws,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
	})
	return &app{handler: h, codes: delivered, draws: draws}
}

func (a *app) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v))
}

func (a *app) login(t *testing.T, email string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/v1/auth/request-code", "", map[string]string{"email": email})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do(t, http.MethodPost, "/v1/auth/verify-code", "", map[string]string{"email": email, "code": a.codes.get()})
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	decode(t, rr, &resp)
	require.True(t, resp.Success)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/v1/health-check/ping", "", nil).Code)

	rr := a.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# metrics")
}

func TestRouter_OrganizerRoutesRequireBearer(t *testing.T) {
	a := newApp(t)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/events", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/v1/events/e1/draw", "", nil).Code)
}

func TestRouter_GiftExchangeFlow(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "Ana@Example.com")

	rr := a.do(t, http.MethodPost, "/v1/events", "", domain.CreateEventRequest{
		Title: "Office party", EventDate: "2026-12-24", MinValue: 10, MaxValue: 50, Email: "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var e domain.Event
	decode(t, rr, &e)

	ids := make([]string, 0, 3)
	for _, name := range []string{"Bea", "Caio", "Duda"} {
		rr = a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/participants", token, domain.AddParticipantRequest{Name: name})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var p domain.Participant
		decode(t, rr, &p)
		ids = append(ids, p.ParticipantID)
	}

	// Drawing with pending participants is refused.
	rr = a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/draw", token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	// Bea confirms herself over WhatsApp; the organizer confirms the rest.
	public := "/v1/public/events/" + e.EventID + "/participants/" + ids[0]
	rr = a.do(t, http.MethodPost, public+"/send-whatsapp-code", "", map[string]string{"whatsapp_number": "(11) 99999-0000"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = a.do(t, http.MethodPost, public+"/verify-whatsapp-code", "", map[string]string{
		"whatsapp_number": "11 99999 0000", "code": a.codes.get(),
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)

	for _, pid := range ids[1:] {
		rr = a.do(t, http.MethodPut, "/v1/events/"+e.EventID+"/participants/"+pid, token, domain.SetConfirmedRequest{Confirmed: true})
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	rr = a.do(t, http.MethodGet, "/v1/public/events/"+e.EventID+"/participants?confirmed=true", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var confirmed []map[string]interface{}
	decode(t, rr, &confirmed)
	assert.Len(t, confirmed, 3)

	rr = a.do(t, http.MethodPut, public+"/gift-suggestion", "", domain.GiftSuggestionRequest{GiftSuggestion: "books"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/draw", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var drawn struct {
		Pairs []domain.DrawPair `json:"pairs"`
	}
	decode(t, rr, &drawn)
	require.Len(t, drawn.Pairs, 3)
	givers, receivers := map[string]bool{}, map[string]bool{}
	for _, p := range drawn.Pairs {
		assert.NotEqual(t, p.GiverID, p.ReceiverID)
		givers[p.GiverID] = true
		receivers[p.ReceiverID] = true
	}
	assert.Len(t, givers, 3)
	assert.Len(t, receivers, 3)

	// Second draw and roster edits are refused once the latch is set.
	assert.Equal(t, http.StatusConflict, a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/draw", token, nil).Code)
	rr = a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/participants", token, domain.AddParticipantRequest{Name: "Late"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = a.do(t, http.MethodGet, "/v1/events/"+e.EventID+"/draw", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var results struct {
		Pairs []domain.DrawPair `json:"pairs"`
	}
	decode(t, rr, &results)
	assert.ElementsMatch(t, drawn.Pairs, results.Pairs)

	a.draws.Wait()
}

func TestRouter_OtherOrganizerCannotDraw(t *testing.T) {
	a := newApp(t)
	owner := a.login(t, "ana@example.com")
	rr := a.do(t, http.MethodPost, "/v1/events", "", domain.CreateEventRequest{
		Title: "Family", EventDate: "2026-12-24", Email: "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var e domain.Event
	decode(t, rr, &e)
	require.NotEmpty(t, owner)

	intruder := a.login(t, "mallory@example.com")
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/v1/events/"+e.EventID+"/draw", intruder, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/v1/events/"+e.EventID, intruder, nil).Code)
}

func TestRouter_LogoutRevokesBearer(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "ana@example.com")

	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/v1/sessions", token, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodPost, "/v1/sessions/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodGet, "/v1/sessions", token, nil).Code)
}

func TestRouter_EventUpdateReminderAndDelete(t *testing.T) {
	a := newApp(t)
	token := a.login(t, "ana@example.com")
	rr := a.do(t, http.MethodPost, "/v1/events", "", domain.CreateEventRequest{
		Title: "Family", EventDate: "2026-12-24", Email: "ana@example.com",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var e domain.Event
	decode(t, rr, &e)
	base := "/v1/events/" + e.EventID

	rr = a.do(t, http.MethodPut, base, token, domain.UpdateEventRequest{
		Title: "Family dinner", EventDate: "2026-12-25", MinValue: 20, MaxValue: 80,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated domain.Event
	decode(t, rr, &updated)
	assert.Equal(t, "Family dinner", updated.Title)
	assert.Equal(t, 80.0, updated.MaxValue)

	rr = a.do(t, http.MethodPut, base, token, domain.UpdateEventRequest{Title: "x", EventDate: "2026-12-25", MinValue: 50, MaxValue: 10})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	intruder := a.login(t, "mallory@example.com")
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPut, base, intruder, domain.UpdateEventRequest{Title: "mine", EventDate: "2026-12-25"}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodDelete, base, intruder, nil).Code)

	ids := make([]string, 0, 2)
	for _, name := range []string{"Bea", "Caio"} {
		rr = a.do(t, http.MethodPost, base+"/participants", token, domain.AddParticipantRequest{Name: name})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var p domain.Participant
		decode(t, rr, &p)
		ids = append(ids, p.ParticipantID)
	}
	public := "/v1/public/events/" + e.EventID + "/participants/" + ids[0]
	rr = a.do(t, http.MethodPost, public+"/send-whatsapp-code", "", map[string]string{"whatsapp_number": "(11) 99999-0000"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = a.do(t, http.MethodPost, public+"/verify-whatsapp-code", "", map[string]string{
		"whatsapp_number": "11 99999 0000", "code": a.codes.get(),
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = a.do(t, http.MethodPost, base+"/participants/suggestion-reminders", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var res event.ReminderResult
	decode(t, rr, &res)
	assert.Equal(t, event.ReminderResult{Sent: 1, Skipped: 1}, res)
	assert.Len(t, a.codes.notifications(), 1)

	rr = a.do(t, http.MethodDelete, base, token, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, base, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodDelete, base, token, nil).Code)
}
