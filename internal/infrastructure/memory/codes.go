package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-secret-friend/internal/domain"
)

type CodeRepo struct{ s *Store }

func (r *CodeRepo) Get(_ context.Context, key domain.CodeKey) (*domain.VerificationCode, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.codes[key.String()]
	if !ok {
		return nil, fmt.Errorf("verification code not found: %w", domain.ErrNotFound)
	}
	return &v, nil
}

func (r *CodeRepo) CompareAndSwap(_ context.Context, prevRevision string, next *domain.VerificationCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := next.Key().String()
	cur, ok := r.s.codes[k]
	switch {
	case prevRevision == "" && ok:
		return fmt.Errorf("code slot already taken: %w", domain.ErrConcurrentModification)
	case prevRevision != "" && (!ok || cur.Revision != prevRevision):
		return fmt.Errorf("code revision changed: %w", domain.ErrConcurrentModification)
	}
	r.s.codes[k] = *next
	return nil
}

func (r *CodeRepo) PurgeStale(_ context.Context, now time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, v := range r.s.codes {
		if v.Consumed || v.Expired(now) {
			delete(r.s.codes, k)
			n++
		}
	}
	return n, nil
}
