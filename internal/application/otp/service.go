package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-secret-friend/internal/domain"
	"github.com/go-secret-friend/internal/infrastructure/metrics"
	"github.com/go-secret-friend/internal/pkg/id"
	"github.com/go-secret-friend/internal/pkg/identifier"
	"golang.org/x/crypto/bcrypt"
)

// CodeLength is the number of decimal digits in an issued code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// Store holds at most one record per code key.
// CompareAndSwap writes next only if the stored revision still equals prevRevision
// (an empty prevRevision means "no record may exist") and otherwise fails with
// domain.ErrConcurrentModification.
type Store interface {
	Get(ctx context.Context, key domain.CodeKey) (*domain.VerificationCode, error)
	CompareAndSwap(ctx context.Context, prevRevision string, next *domain.VerificationCode) error
	PurgeStale(ctx context.Context, now time.Time) (int, error)
}

// Deliverer hands a freshly issued code to an out-of-band transport.
type Deliverer interface {
	Send(ctx context.Context, identifier string, ch domain.Channel, code string) domain.DeliveryOutcome
}

// SessionMinter turns a verified login identity into a bearer credential.
type SessionMinter interface {
	Mint(ctx context.Context, identity string) (*domain.Session, error)
}

// PhoneConfirmer marks the participant a phone-verify code was issued for as confirmed.
// CanConfirm is checked before a matching code is consumed so that a code
// presented for a locked event stays usable.
type PhoneConfirmer interface {
	CanConfirm(ctx context.Context, participantID string) error
	ConfirmPhone(ctx context.Context, participantID, phone string) error
}

type IssueRequest struct {
	Identifier string
	Channel    domain.Channel
	Purpose    domain.Purpose
	// Subject binds a phone-verify code to a participant id.
	Subject string
}

// IssueResult separates the business outcome from storage failures, which are
// returned as the error of Issue. DeliveryErr is set when the code was stored
// but could not be handed to the transport.
type IssueResult struct {
	Issued      bool
	Identifier  string
	ExpiresAt   time.Time
	RetryAfter  time.Duration
	Reason      error
	DeliveryErr error
}

type VerifyRequest struct {
	Identifier string
	Channel    domain.Channel
	Purpose    domain.Purpose
	Code       string
	Subject    string
}

type VerifyResult struct {
	Success      bool
	Reason       error
	Identity     string
	Subject      string
	Token        string
	RefreshToken string
	Session      *domain.Session
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
	Purge(ctx context.Context) (int, error)
}

type Config struct {
	TTL         time.Duration
	MaxAttempts int
	Cooldown    time.Duration
	HashCost    int
}

// DefaultConfig mirrors the production defaults: 10 minute codes, 5 attempts, 30s resend cooldown.
func DefaultConfig() Config {
	return Config{TTL: 10 * time.Minute, MaxAttempts: 5, Cooldown: 30 * time.Second, HashCost: bcrypt.DefaultCost}
}

type ServiceDeps struct {
	Store     Store
	Deliverer Deliverer
	Minter    SessionMinter
	Confirmer PhoneConfirmer
	Config    Config
	Clock     func() time.Time
	// Codes overrides the code generator; nil draws from crypto/rand.
	Codes func() (string, error)
}

type service struct {
	store     Store
	deliverer Deliverer
	minter    SessionMinter
	confirmer PhoneConfirmer
	cfg       Config
	now       func() time.Time
	codes     func() (string, error)
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		deliverer: deps.Deliverer,
		minter:    deps.Minter,
		confirmer: deps.Confirmer,
		cfg:       deps.Config,
		now:       deps.Clock,
		codes:     deps.Codes,
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.codes == nil {
		s.codes = func() (string, error) { return generateCode(rand.Reader) }
	}
	if s.cfg.TTL <= 0 {
		s.cfg.TTL = 10 * time.Minute
	}
	if s.cfg.MaxAttempts <= 0 {
		s.cfg.MaxAttempts = 5
	}
	return s
}

func (s *service) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	res, err := s.issue(ctx, req)
	metrics.CodesIssuedTotal.WithLabelValues(string(req.Channel), string(req.Purpose), metrics.Result(domain.Reason(res.Reason), err)).Inc()
	return res, err
}

func (s *service) issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	ident, err := identifier.Normalize(req.Identifier, req.Channel)
	if err != nil {
		return IssueResult{Reason: err}, nil
	}
	if !req.Purpose.Valid() {
		return IssueResult{Reason: fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrBadRequest)}, nil
	}
	key := domain.CodeKey{Identifier: ident, Channel: req.Channel, Purpose: req.Purpose}

	var (
		res  IssueResult
		code string
	)
	for attempt := 0; attempt < 2; attempt++ {
		res, code, err = s.tryIssue(ctx, key, req.Subject)
		if !errors.Is(err, domain.ErrConcurrentModification) {
			break
		}
	}
	if errors.Is(err, domain.ErrConcurrentModification) {
		return IssueResult{Identifier: ident, Reason: err}, nil
	}
	if err != nil {
		return IssueResult{}, fmt.Errorf("issue code: %w", err)
	}
	res.Identifier = ident
	if !res.Issued {
		return res, nil
	}

	if s.deliverer == nil {
		res.DeliveryErr = fmt.Errorf("no transport configured for %s: %w", key.Channel, domain.ErrDeliveryFailed)
		return res, nil
	}
	out := s.deliverer.Send(ctx, ident, key.Channel, code)
	if out.Err != nil {
		slog.Error("code stored but delivery failed", "channel", key.Channel, "purpose", key.Purpose, "provider", out.Provider, "err", out.Err)
		res.DeliveryErr = out.Err
		if !errors.Is(out.Err, domain.ErrDeliveryFailed) {
			res.DeliveryErr = fmt.Errorf("%w: %v", domain.ErrDeliveryFailed, out.Err)
		}
	}
	return res, nil
}

// tryIssue performs one read-then-CAS round. A lost CAS surfaces as
// domain.ErrConcurrentModification so the caller can retry once.
func (s *service) tryIssue(ctx context.Context, key domain.CodeKey, subject string) (IssueResult, string, error) {
	now := s.now()
	prev := ""
	cur, err := s.store.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return IssueResult{}, "", err
	default:
		prev = cur.Revision
		if s.cfg.Cooldown > 0 && cur.Live(now) {
			if elapsed := now.Sub(cur.CreatedAt); elapsed < s.cfg.Cooldown {
				return IssueResult{
					Reason:     fmt.Errorf("code for %s sent %s ago: %w", key.Channel, elapsed.Round(time.Second), domain.ErrRateLimited),
					RetryAfter: s.cfg.Cooldown - elapsed,
				}, "", nil
			}
		}
	}

	code, err := s.codes()
	if err != nil {
		return IssueResult{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return IssueResult{}, "", fmt.Errorf("hash code: %w", err)
	}
	rec := &domain.VerificationCode{
		Identifier: key.Identifier,
		Channel:    key.Channel,
		Purpose:    key.Purpose,
		CodeHash:   string(hash),
		Subject:    subject,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
		Revision:   id.New(),
	}
	if err := s.store.CompareAndSwap(ctx, prev, rec); err != nil {
		return IssueResult{}, "", err
	}
	return IssueResult{Issued: true, ExpiresAt: rec.ExpiresAt}, code, nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	res, err := s.verify(ctx, req)
	metrics.VerificationsTotal.WithLabelValues(string(req.Channel), string(req.Purpose), metrics.Result(domain.Reason(res.Reason), err)).Inc()
	return res, err
}

func (s *service) verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	ident, err := identifier.Normalize(req.Identifier, req.Channel)
	if err != nil {
		return VerifyResult{Reason: err}, nil
	}
	if !req.Purpose.Valid() {
		return VerifyResult{Reason: fmt.Errorf("unknown purpose %q: %w", req.Purpose, domain.ErrBadRequest)}, nil
	}
	key := domain.CodeKey{Identifier: ident, Channel: req.Channel, Purpose: req.Purpose}

	var (
		res VerifyResult
		rec *domain.VerificationCode
	)
	for attempt := 0; attempt < 2; attempt++ {
		res, rec, err = s.tryVerify(ctx, key, req)
		if !errors.Is(err, domain.ErrConcurrentModification) {
			break
		}
	}
	if errors.Is(err, domain.ErrConcurrentModification) {
		return VerifyResult{Reason: err}, nil
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("verify code: %w", err)
	}
	if !res.Success {
		return res, nil
	}
	res.Identity = ident
	res.Subject = rec.Subject

	switch key.Purpose {
	case domain.PurposeLogin:
		if s.minter == nil {
			return VerifyResult{}, errors.New("verify code: no session minter configured")
		}
		sess, err := s.minter.Mint(ctx, ident)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("mint session: %w", err)
		}
		res.Session = sess
		res.Token = sess.Token
		res.RefreshToken = sess.RefreshToken
	case domain.PurposePhoneVerify:
		if s.confirmer == nil {
			return VerifyResult{}, errors.New("verify code: no phone confirmer configured")
		}
		if err := s.confirmer.ConfirmPhone(ctx, rec.Subject, ident); err != nil {
			if domain.IsBusinessRule(err) {
				slog.Warn("phone verified but participant could not be confirmed", "participant_id", rec.Subject, "err", err)
				return VerifyResult{Reason: err, Identity: ident, Subject: rec.Subject}, nil
			}
			return VerifyResult{}, fmt.Errorf("confirm participant: %w", err)
		}
	}
	return res, nil
}

// tryVerify evaluates the stored record and writes the resulting state with a
// single CAS, so exactly one caller can ever flip consumed to true.
func (s *service) tryVerify(ctx context.Context, key domain.CodeKey, req VerifyRequest) (VerifyResult, *domain.VerificationCode, error) {
	now := s.now()
	cur, err := s.store.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return VerifyResult{Reason: fmt.Errorf("no code for %s: %w", key.Channel, domain.ErrNotFound)}, nil, nil
	}
	if err != nil {
		return VerifyResult{}, nil, err
	}
	if req.Subject != "" && cur.Subject != req.Subject {
		return VerifyResult{Reason: fmt.Errorf("no code for this participant: %w", domain.ErrNotFound)}, nil, nil
	}
	switch {
	case cur.Consumed:
		return VerifyResult{Reason: domain.ErrAlreadyConsumed}, nil, nil
	case cur.Expired(now):
		return VerifyResult{Reason: domain.ErrExpired}, nil, nil
	case cur.Attempts >= s.cfg.MaxAttempts:
		return VerifyResult{Reason: domain.ErrAttemptsExceeded}, nil, nil
	}

	next := *cur
	next.Revision = id.New()
	if bcrypt.CompareHashAndPassword([]byte(cur.CodeHash), []byte(req.Code)) != nil {
		next.Attempts++
		if err := s.store.CompareAndSwap(ctx, cur.Revision, &next); err != nil {
			return VerifyResult{}, nil, err
		}
		return VerifyResult{Reason: domain.ErrInvalidCode}, nil, nil
	}
	if key.Purpose == domain.PurposePhoneVerify && s.confirmer != nil {
		// A draw landing between this check and ConfirmPhone still consumes the code.
		if err := s.confirmer.CanConfirm(ctx, cur.Subject); err != nil {
			if domain.IsBusinessRule(err) {
				return VerifyResult{Reason: err}, nil, nil
			}
			return VerifyResult{}, nil, fmt.Errorf("check participant: %w", err)
		}
	}
	next.Consumed = true
	if err := s.store.CompareAndSwap(ctx, cur.Revision, &next); err != nil {
		return VerifyResult{}, nil, err
	}
	return VerifyResult{Success: true}, &next, nil
}

func (s *service) Purge(ctx context.Context) (int, error) {
	n, err := s.store.PurgeStale(ctx, s.now())
	if err != nil {
		return n, fmt.Errorf("purge codes: %w", err)
	}
	metrics.PurgedCodesTotal.Add(float64(n))
	return n, nil
}

// generateCode draws a uniform value in [0, 999999] and keeps leading zeros.
func generateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return formatCode(n.Int64()), nil
}

func formatCode(n int64) string {
	return fmt.Sprintf("%0*d", CodeLength, n)
}
