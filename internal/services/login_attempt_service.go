package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bastionhq/bastion/internal/audit"
	"github.com/bastionhq/bastion/internal/models"
	pkglogger "github.com/bastionhq/bastion/pkg/logger"
)

// LoginAttemptStore defines the persistence operations for login attempt
// records. An absent record is reported as models.ErrNotFound; connectivity
// failures wrap models.ErrTechnical.
type LoginAttemptStore interface {
	FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error)
	GetByID(ctx context.Context, id string) (*models.LoginAttempt, error)
	Create(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	Update(ctx context.Context, attempt *models.LoginAttempt) (*models.LoginAttempt, error)
	Delete(ctx context.Context, id string) error
	DeleteByDomain(ctx context.Context, domain string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// LoginAttemptService coordinates the per-key failure counter and lockout
// lifecycle:
//
//	absent -> active(attempts=n) -> locked(attempts>=max, expireAt set) -> absent
//
// The find-then-write sequence is not atomic against the backing store.
// Two concurrent failures for the same key can read the same stale count
// and both persist the same increment; the counter may under-count. That
// last-writer-wins behavior is accepted for availability over strict
// counting precision.
type LoginAttemptService struct {
	store      LoginAttemptStore
	dispatcher *audit.Dispatcher
	logger     *slog.Logger
}

// NewLoginAttemptService creates a new LoginAttemptService. The dispatcher
// may be nil when audit reporting is disabled.
func NewLoginAttemptService(store LoginAttemptStore, dispatcher *audit.Dispatcher, logger *slog.Logger) *LoginAttemptService {
	return &LoginAttemptService{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RecordFailure registers one failed authentication for the key. The first
// failure creates the record with attempts=1; later failures increment it.
// The moment the lockout policy trips, ExpireAt is fixed to
// now + AccountBlockedDuration and is not moved by subsequent failures.
func (s *LoginAttemptService) RecordFailure(ctx context.Context, criteria models.LoginAttemptCriteria, settings AccountProtectionSettings) (*models.LoginAttempt, error) {
	existing, err := s.store.FindByCriteria(ctx, criteria)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up login attempt: %w", err)
	}

	now := time.Now()

	if existing == nil {
		attempt := &models.LoginAttempt{
			Domain:           criteria.Domain,
			Client:           criteria.Client,
			IdentityProvider: criteria.IdentityProvider,
			Username:         criteria.Username,
			Attempts:         1,
		}
		s.applyLockout(attempt, settings, now)

		created, err := s.store.Create(ctx, attempt)
		if err != nil {
			return nil, fmt.Errorf("failed to create login attempt: %w", err)
		}
		return created, nil
	}

	existing.Attempts++
	s.applyLockout(existing, settings, now)

	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("failed to update login attempt: %w", err)
	}
	return updated, nil
}

// applyLockout stamps ExpireAt once the policy evaluates to locked. Expiry
// is set at the moment of locking only; an already-locked record keeps its
// original window.
func (s *LoginAttemptService) applyLockout(attempt *models.LoginAttempt, settings AccountProtectionSettings, now time.Time) {
	decision := EvaluateLockout(attempt.Attempts, settings)
	if !decision.Locked || attempt.ExpireAt != nil {
		return
	}

	expireAt := now.Add(settings.AccountBlockedDuration)
	attempt.ExpireAt = &expireAt

	s.logger.Warn("account locked",
		slog.String("domain", attempt.Domain),
		slog.String("client", attempt.Client),
		slog.String("username", pkglogger.MaskUsername(attempt.Username)),
		slog.Int("attempts", attempt.Attempts),
		slog.Time("expire_at", expireAt),
	)

	s.reportLocked(attempt)
}

// reportLocked submits an account_locked audit event. Submission rejection
// under backpressure is logged but never fails the authentication path.
func (s *LoginAttemptService) reportLocked(attempt *models.LoginAttempt) {
	if s.dispatcher == nil {
		return
	}

	err := s.dispatcher.Report(context.Background(), audit.UserAction{
		Type:     audit.EventTypeAccountLocked,
		Domain:   attempt.Domain,
		ActorID:  attempt.Username,
		TargetID: attempt.Username,
		Outcome:  audit.OutcomeFailure,
		Reason:   "maximum login attempts exceeded",
	})
	if err != nil {
		s.logger.Error("failed to submit account_locked audit event", slog.Any("error", err))
	}
}

// RecordSuccess clears the failure counter for the key after a successful
// authentication. Idempotent: no record for the key is a valid no-op, not
// an error.
func (s *LoginAttemptService) RecordSuccess(ctx context.Context, criteria models.LoginAttemptCriteria) error {
	existing, err := s.store.FindByCriteria(ctx, criteria)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up login attempt: %w", err)
	}

	if err := s.store.Delete(ctx, existing.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete login attempt: %w", err)
	}
	return nil
}

// ClearDomain removes every login attempt record for a domain. Used on
// domain teardown; succeeds even when nothing exists.
func (s *LoginAttemptService) ClearDomain(ctx context.Context, domain string) error {
	if err := s.store.DeleteByDomain(ctx, domain); err != nil {
		return fmt.Errorf("failed to clear login attempts for domain %s: %w", domain, err)
	}
	return nil
}

// FindByCriteria returns the record for the key, or models.ErrNotFound.
func (s *LoginAttemptService) FindByCriteria(ctx context.Context, criteria models.LoginAttemptCriteria) (*models.LoginAttempt, error) {
	return s.store.FindByCriteria(ctx, criteria)
}

// GetByID returns the record by its id, or models.ErrNotFound.
func (s *LoginAttemptService) GetByID(ctx context.Context, id string) (*models.LoginAttempt, error) {
	return s.store.GetByID(ctx, id)
}
