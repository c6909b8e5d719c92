package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"relay/internal/accesscode"
	"relay/internal/domain"
	"relay/internal/notify"
	"relay/internal/observability/metrics"

	"golang.org/x/crypto/bcrypt"
)

const codeDigits = 6

// CodeGenerator yields candidate access codes.
type CodeGenerator interface {
	Next() (string, error)
}

type OTPConfig struct {
	TTL            time.Duration
	MaxAttempts    int // wrong guesses before a code is burned
	HashCost       int
	AccessAttempts int
	NotifyTimeout  time.Duration
}

// OTPIssuer issues one-time codes for contact addresses and turns a verified
// address into an Identity.
type OTPIssuer struct {
	codes      CodeRepository
	identities IdentityRepository
	notifier   notify.Notifier
	gen        CodeGenerator
	cfg        OTPConfig
	rand       io.Reader
	now        func() time.Time

	inflight sync.WaitGroup
}

func NewOTPIssuer(codes CodeRepository, identities IdentityRepository, notifier notify.Notifier, cfg OTPConfig) *OTPIssuer {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.AccessAttempts <= 0 {
		cfg.AccessAttempts = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	return &OTPIssuer{
		codes:      codes,
		identities: identities,
		notifier:   notifier,
		gen:        accesscode.Generator{},
		cfg:        cfg,
		now:        time.Now,
	}
}

func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// RequestCode stores a fresh code for address, replacing any earlier one, and
// hands it to the notifier in the background. Notifier failures are logged
// and never reach the caller.
func (s *OTPIssuer) RequestCode(ctx context.Context, address string) error {
	address = NormalizeAddress(address)
	if address == "" {
		return fmt.Errorf("%w: address is required", domain.ErrInvalidRequest)
	}
	code, err := accesscode.NumericCode(s.rand, codeDigits)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.HashCost)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	err = s.codes.Upsert(ctx, domain.OneTimeCode{
		Address:   address,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.cfg.TTL),
		IssuedAt:  now,
	})
	if err != nil {
		return err
	}
	metrics.OTPCodesIssuedTotal.WithLabelValues().Inc()
	s.dispatch(address, code)
	return nil
}

func (s *OTPIssuer) dispatch(address, code string) {
	if s.notifier == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, address, code); err != nil {
			metrics.OTPNotificationsTotal.WithLabelValues("failure").Inc()
			slog.Warn("code delivery failed", "address", address, "error", err)
			return
		}
		metrics.OTPNotificationsTotal.WithLabelValues("success").Inc()
	}()
}

// Wait blocks until every background delivery has finished.
func (s *OTPIssuer) Wait() { s.inflight.Wait() }

// VerifyCode redeems code for address. Missing, wrong, expired and burned
// codes all fail with domain.ErrInvalidCode so callers cannot tell them apart.
// A code can be redeemed once and is burned after MaxAttempts wrong guesses.
func (s *OTPIssuer) VerifyCode(ctx context.Context, address, code string) (*domain.Identity, error) {
	address = NormalizeAddress(address)
	code = strings.TrimSpace(code)
	if address == "" || code == "" {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCode
	}

	row, err := s.codes.Get(ctx, address)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}
	now := s.now().UTC()
	if !row.Valid(now) {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCode
	}
	if bcrypt.CompareHashAndPassword(row.CodeHash, []byte(code)) != nil {
		burned, err := s.codes.RecordFailure(ctx, address, row.CodeHash, s.cfg.MaxAttempts)
		if err != nil {
			return nil, err
		}
		if burned {
			metrics.OTPVerificationsTotal.WithLabelValues("burned").Inc()
			slog.Info("code burned after repeated failures", "address", address)
		} else {
			metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		}
		return nil, domain.ErrInvalidCode
	}
	consumed, err := s.codes.Consume(ctx, address, row.CodeHash)
	if err != nil {
		return nil, err
	}
	if !consumed {
		metrics.OTPVerificationsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidCode
	}

	id, err := s.ensureIdentity(ctx, address, now)
	if err != nil {
		return nil, err
	}
	metrics.OTPVerificationsTotal.WithLabelValues("success").Inc()
	return id, nil
}

// ensureIdentity returns the identity already verified for address or creates
// one under a fresh access code, drawing a new code when the store reports a
// collision.
func (s *OTPIssuer) ensureIdentity(ctx context.Context, address string, now time.Time) (*domain.Identity, error) {
	existing, err := s.identities.GetByAddress(ctx, address)
	if err == nil {
		if err := s.identities.MarkVerified(ctx, existing.AccessCode, now); err != nil {
			return nil, err
		}
		existing.VerifiedAt = now
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < s.cfg.AccessAttempts; attempt++ {
		code, err := s.gen.Next()
		if err != nil {
			return nil, err
		}
		id := &domain.Identity{AccessCode: code, Address: address, VerifiedAt: now}
		err = s.identities.Create(ctx, id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// Either the code collided or a concurrent verification created the
		// identity for this address.
		if existing, getErr := s.identities.GetByAddress(ctx, address); getErr == nil {
			return existing, nil
		}
		slog.Debug("access code collision, retrying", "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: no unique access code after %d attempts", domain.ErrConflict, s.cfg.AccessAttempts)
}
