package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-secret-friend/internal/domain"
	jwtinfra "github.com/go-secret-friend/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSessionStore struct{ mock.Mock }

func (m *mockSessionStore) Put(ctx context.Context, s *domain.Session) error {
	return m.Called(ctx, s).Error(0)
}
func (m *mockSessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	args := m.Called(ctx, sessionID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error) {
	args := m.Called(ctx, token)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSessionStore) RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error {
	return m.Called(ctx, sessionID, newToken, newExpiry).Error(0)
}
func (m *mockSessionStore) Disable(ctx context.Context, sessionID string) error {
	return m.Called(ctx, sessionID).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(identity, sessionID string) (string, error) {
	args := m.Called(identity, sessionID)
	return args.String(0), args.Error(1)
}
func (m *mockJWTSigner) Verify(token string) (*jwtinfra.Claims, error) {
	args := m.Called(token)
	if c, _ := args.Get(0).(*jwtinfra.Claims); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var fixedNow = time.Date(2026, 12, 1, 10, 0, 0, 0, time.UTC)

func newSvc(ss *mockSessionStore, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{
		SessionRepo:     ss,
		JWTProvider:     jwt,
		TokenTTL:        time.Hour,
		RefreshTokenDur: 24 * time.Hour,
		Clock:           func() time.Time { return fixedNow },
	})
}

// --- Mint ---

func TestMint_StoresSessionAndSignsBearer(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	ss.On("Put", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
	jwt.On("Sign", "ana@example.com", mock.Anything).Return("bearer", nil)

	sess, err := newSvc(ss, jwt).Mint(context.Background(), "ana@example.com")

	require.NoError(t, err)
	assert.Equal(t, "bearer", sess.Token)
	assert.Equal(t, "ana@example.com", sess.Identity)
	assert.Len(t, sess.RefreshToken, 64)
	assert.True(t, sess.Enable)
	assert.Equal(t, fixedNow.Add(time.Hour), sess.ExpiresAt)
	assert.Equal(t, fixedNow.Add(24*time.Hour).Unix(), sess.RefreshExpiresAt)
	jwt.AssertCalled(t, "Sign", "ana@example.com", sess.SessionID)
}

func TestMint_EmptyIdentity(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}

	_, err := newSvc(ss, jwt).Mint(context.Background(), "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
	ss.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestMint_StoreFailure(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	ss.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	_, err := newSvc(ss, jwt).Mint(context.Background(), "ana@example.com")

	require.Error(t, err)
	jwt.AssertNotCalled(t, "Sign", mock.Anything, mock.Anything)
}

// --- Authenticate ---

func TestAuthenticate_ActiveSession(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	jwt.On("Verify", "tok").Return(&jwtinfra.Claims{Identity: "ana@example.com", SessionID: "s1"}, nil)
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Identity: "ana@example.com", Enable: true}, nil)

	claims, err := newSvc(ss, jwt).Authenticate(context.Background(), "tok")

	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", claims.Identity)
}

func TestAuthenticate_LoggedOutSession(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	jwt.On("Verify", "tok").Return(&jwtinfra.Claims{Identity: "ana@example.com", SessionID: "s1"}, nil)
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Identity: "ana@example.com", Enable: false}, nil)

	_, err := newSvc(ss, jwt).Authenticate(context.Background(), "tok")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthenticate_BadSignature(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	jwt.On("Verify", "tok").Return(nil, errors.New("token signature is invalid"))

	_, err := newSvc(ss, jwt).Authenticate(context.Background(), "tok")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ss.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

// --- GetCurrent / Logout ---

func TestGetCurrent_DisabledSession(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	ss.On("Get", mock.Anything, "s1").Return(&domain.Session{SessionID: "s1", Enable: false}, nil)

	_, err := newSvc(ss, jwt).GetCurrent(context.Background(), "s1")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogout_DisablesSession(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	ss.On("Disable", mock.Anything, "s1").Return(nil)

	require.NoError(t, newSvc(ss, jwt).Logout(context.Background(), "s1"))
	ss.AssertExpectations(t)
}

// --- Refresh ---

func TestRefresh_RotatesToken(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	sess := &domain.Session{SessionID: "s1", Identity: "ana@example.com", Enable: true, RefreshExpiresAt: fixedNow.Add(time.Hour).Unix()}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(sess, nil)
	ss.On("RotateRefreshToken", mock.Anything, "s1", mock.AnythingOfType("string"), fixedNow.Add(24*time.Hour).Unix()).Return(nil)
	jwt.On("Sign", "ana@example.com", "s1").Return("bearer2", nil)

	bearer, newToken, err := newSvc(ss, jwt).Refresh(context.Background(), "old")

	require.NoError(t, err)
	assert.Equal(t, "bearer2", bearer)
	assert.NotEqual(t, "old", newToken)
	assert.Len(t, newToken, 64)
}

func TestRefresh_Expired(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	sess := &domain.Session{SessionID: "s1", Enable: true, RefreshExpiresAt: fixedNow.Add(-time.Second).Unix()}
	ss.On("GetByRefreshToken", mock.Anything, "old").Return(sess, nil)

	_, _, err := newSvc(ss, jwt).Refresh(context.Background(), "old")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	ss.AssertNotCalled(t, "RotateRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRefresh_UnknownToken(t *testing.T) {
	ss, jwt := &mockSessionStore{}, &mockJWTSigner{}
	ss.On("GetByRefreshToken", mock.Anything, "nope").Return(nil, domain.ErrNotFound)

	_, _, err := newSvc(ss, jwt).Refresh(context.Background(), "nope")

	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
