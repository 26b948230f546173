package refreshtoken

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
)

const jitterPercent = 20

// RetryObserver is notified about retried and failed store calls.
type RetryObserver interface {
	ObserveStorageRetry(op string)
	ObserveStorageFailure(op string)
}

// RetryingStore applies one bounded retry policy to every call of the
// wrapped store and converts infrastructure failures into StorageError.
// Record level outcomes such as ErrNotActive pass through untouched.
type RetryingStore struct {
	next      Store
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	observer  RetryObserver
	logger    *logging.Service
}

func NewRetryingStore(next Store, cfg config.StorageConfig, observer RetryObserver, logger *logging.Service) *RetryingStore {
	return &RetryingStore{
		next:      next,
		attempts:  cfg.RetryAttempts,
		baseDelay: cfg.RetryBaseDelay,
		maxDelay:  cfg.RetryMaxDelay,
		observer:  observer,
		logger:    logger,
	}
}

func (s *RetryingStore) backoff() retry.Backoff {
	b := retry.NewExponential(s.baseDelay)
	b = retry.WithJitterPercent(jitterPercent, b)
	b = retry.WithCappedDuration(s.maxDelay, b)
	return retry.WithMaxRetries(uint64(max(s.attempts-1, 0)), b)
}

func (s *RetryingStore) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0

	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err == nil || !IsTransient(err) {
			return err
		}

		if attempt < s.attempts {
			if s.observer != nil {
				s.observer.ObserveStorageRetry(op)
			}
			if s.logger != nil {
				s.logger.Warn("transient session store failure, retrying",
					zap.String("op", op),
					zap.Int("attempt", attempt),
					zap.Error(err))
			}
		}

		return retry.RetryableError(err)
	})

	if err == nil || passThrough(err) {
		return err
	}

	if s.observer != nil {
		s.observer.ObserveStorageFailure(op)
	}
	if s.logger != nil {
		s.logger.Error("session store unavailable",
			zap.String("op", op),
			zap.Int("attempts", attempt),
			zap.Error(err))
	}

	return &autherr.StorageError{Op: op, Attempts: attempt, Err: err}
}

func passThrough(err error) bool {
	return errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrSubjectMismatch) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (s *RetryingStore) Create(ctx context.Context, rec NewRecord) (*RefreshToken, error) {
	var token *RefreshToken
	err := s.do(ctx, "create", func(ctx context.Context) error {
		var err error
		token, err = s.next.Create(ctx, rec)
		return err
	})
	return token, err
}

func (s *RetryingStore) GetByTokenID(ctx context.Context, tokenID string) (*RefreshToken, error) {
	var token *RefreshToken
	err := s.do(ctx, "get", func(ctx context.Context) error {
		var err error
		token, err = s.next.GetByTokenID(ctx, tokenID)
		return err
	})
	return token, err
}

func (s *RetryingStore) IsActive(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	var active bool
	err := s.do(ctx, "is_active", func(ctx context.Context) error {
		var err error
		active, err = s.next.IsActive(ctx, tokenID, at)
		return err
	})
	return active, err
}

func (s *RetryingStore) Revoke(ctx context.Context, tokenID string, at time.Time, reason RevokeReason) (bool, error) {
	var changed bool
	err := s.do(ctx, "revoke", func(ctx context.Context) error {
		var err error
		changed, err = s.next.Revoke(ctx, tokenID, at, reason)
		return err
	})
	return changed, err
}

func (s *RetryingStore) RevokeAll(ctx context.Context, subjectID uint, at time.Time, reason RevokeReason) (int64, error) {
	var count int64
	err := s.do(ctx, "revoke_all", func(ctx context.Context) error {
		var err error
		count, err = s.next.RevokeAll(ctx, subjectID, at, reason)
		return err
	})
	return count, err
}

// Rotate is safe to retry with the same successor: a transaction that failed
// transiently rolled back, and one that committed before the reply was lost
// is reported as the successor it created.
func (s *RetryingStore) Rotate(ctx context.Context, oldTokenID string, next NewRecord) (*RefreshToken, error) {
	var token *RefreshToken
	err := s.do(ctx, "rotate", func(ctx context.Context) error {
		var err error
		token, err = s.next.Rotate(ctx, oldTokenID, next)
		return err
	})
	return token, err
}

func (s *RetryingStore) ListActive(ctx context.Context, subjectID uint, at time.Time) ([]RefreshToken, error) {
	var tokens []RefreshToken
	err := s.do(ctx, "list_active", func(ctx context.Context) error {
		var err error
		tokens, err = s.next.ListActive(ctx, subjectID, at)
		return err
	})
	return tokens, err
}

func (s *RetryingStore) Chain(ctx context.Context, tokenID string) ([]RefreshToken, error) {
	var chain []RefreshToken
	err := s.do(ctx, "chain", func(ctx context.Context) error {
		var err error
		chain, err = s.next.Chain(ctx, tokenID)
		return err
	})
	return chain, err
}
