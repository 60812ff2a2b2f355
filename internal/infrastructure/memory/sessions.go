package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-secret-friend/internal/domain"
)

type SessionRepo struct{ s *Store }

func (r *SessionRepo) Put(_ context.Context, sess *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sess
	cp.Token = ""
	r.s.sessions[sess.SessionID] = cp
	return nil
}

func (r *SessionRepo) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	return &sess, nil
}

func (r *SessionRepo) GetByRefreshToken(_ context.Context, token string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sess := range r.s.sessions {
		if sess.RefreshToken != token {
			continue
		}
		if !sess.Enable {
			return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
		}
		return &sess, nil
	}
	return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
}

func (r *SessionRepo) RotateRefreshToken(_ context.Context, sessionID, newToken string, newExpiry int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	sess.RefreshToken = newToken
	sess.RefreshExpiresAt = newExpiry
	sess.UpdatedAt = time.Now().UTC()
	r.s.sessions[sessionID] = sess
	return nil
}

func (r *SessionRepo) Disable(_ context.Context, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	sess.Enable = false
	sess.UpdatedAt = time.Now().UTC()
	r.s.sessions[sessionID] = sess
	return nil
}
