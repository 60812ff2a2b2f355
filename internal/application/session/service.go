package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-secret-friend/internal/domain"
	jwtinfra "github.com/go-secret-friend/internal/infrastructure/jwt"
	"github.com/go-secret-friend/internal/pkg/id"
)

const defaultRefreshTokenDuration = 30 * 24 * time.Hour

// SessionStore persists minted sessions.
type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

// TokenProvider issues and checks bearer tokens bound to an identity and a session.
type TokenProvider interface {
	Sign(identity, sessionID string) (string, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type Service interface {
	Mint(ctx context.Context, identity string) (*domain.Session, error)
	Authenticate(ctx context.Context, bearer string) (*jwtinfra.Claims, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (bearer, newRefreshToken string, err error)
}

type ServiceDeps struct {
	SessionRepo     SessionStore
	JWTProvider     TokenProvider
	TokenTTL        time.Duration
	RefreshTokenDur time.Duration
	Clock           func() time.Time
}

type service struct {
	sessionRepo     SessionStore
	jwtProvider     TokenProvider
	tokenTTL        time.Duration
	refreshTokenDur time.Duration
	now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		sessionRepo:     deps.SessionRepo,
		jwtProvider:     deps.JWTProvider,
		tokenTTL:        deps.TokenTTL,
		refreshTokenDur: deps.RefreshTokenDur,
		now:             deps.Clock,
	}
	if s.refreshTokenDur <= 0 {
		s.refreshTokenDur = defaultRefreshTokenDuration
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = 24 * time.Hour
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Mint opens a session for an identity whose login code was just verified.
func (s *service) Mint(ctx context.Context, identity string) (*domain.Session, error) {
	if identity == "" {
		return nil, fmt.Errorf("empty identity: %w", domain.ErrBadRequest)
	}
	refreshToken, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now()
	sess := &domain.Session{
		SessionID:        id.New(),
		Identity:         identity,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(s.refreshTokenDur).Unix(),
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.tokenTTL),
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	bearer, err := s.jwtProvider.Sign(identity, sess.SessionID)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	sess.Token = bearer
	return sess, nil
}

// Authenticate accepts a bearer only while its session is still enabled,
// so logout takes effect before the token expires.
func (s *service) Authenticate(ctx context.Context, bearer string) (*jwtinfra.Claims, error) {
	claims, err := s.jwtProvider.Verify(bearer)
	if err != nil {
		return nil, fmt.Errorf("invalid or expired token: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessionRepo.Get(ctx, claims.SessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("unknown session: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !sess.Enable || sess.Identity != claims.Identity {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Disable(ctx, sessionID)
}

func (s *service) GetCurrent(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnauthorized) {
			return "", "", fmt.Errorf("invalid or expired refresh token: %w", domain.ErrUnauthorized)
		}
		return "", "", err
	}
	now := s.now()
	if sess.RefreshExpiresAt < now.Unix() {
		return "", "", fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	newToken, err := newRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, now.Add(s.refreshTokenDur).Unix()); err != nil {
		return "", "", err
	}
	bearer, err := s.jwtProvider.Sign(sess.Identity, sess.SessionID)
	if err != nil {
		return "", "", err
	}
	return bearer, newToken, nil
}

// newRefreshToken returns 32 random bytes hex-encoded. The value is opaque and
// only ever compared by equality in the session store.
func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
