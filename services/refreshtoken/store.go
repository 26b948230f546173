package refreshtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/tokenchain/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotActive       = errors.New("refresh token is not active")
	ErrSubjectMismatch = errors.New("refresh token belongs to another subject")
	ErrInvalidRecord   = errors.New("invalid refresh token record")
)

// maxChainDepth bounds Chain walks.
const maxChainDepth = 1024

// Store is the persistence contract of refresh token records. Implementations
// hold no policy; absent records are reported as a nil record, not an error.
type Store interface {
	Create(ctx context.Context, rec NewRecord) (*RefreshToken, error)
	GetByTokenID(ctx context.Context, tokenID string) (*RefreshToken, error)
	IsActive(ctx context.Context, tokenID string, at time.Time) (bool, error)
	Revoke(ctx context.Context, tokenID string, at time.Time, reason RevokeReason) (bool, error)
	RevokeAll(ctx context.Context, subjectID uint, at time.Time, reason RevokeReason) (int64, error)
	// Rotate revokes oldTokenID and creates next linked to it, atomically.
	// It returns a nil record when oldTokenID does not exist and ErrNotActive
	// when it exists but was already revoked or has expired.
	Rotate(ctx context.Context, oldTokenID string, next NewRecord) (*RefreshToken, error)
	ListActive(ctx context.Context, subjectID uint, at time.Time) ([]RefreshToken, error)
	Chain(ctx context.Context, tokenID string) ([]RefreshToken, error)
}

type GormStore struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewGormStore(db *gorm.DB, logger *logging.Service) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger,
	}
}

func (s *GormStore) Create(ctx context.Context, rec NewRecord) (*RefreshToken, error) {
	if err := validateRecord(rec); err != nil {
		return nil, err
	}

	token := rec.model()
	if err := s.db.WithContext(ctx).Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("refresh token record created",
			zap.Uint("subject_id", rec.SubjectID),
			zap.String("token_id", rec.TokenID))
	}

	return token, nil
}

func (s *GormStore) GetByTokenID(ctx context.Context, tokenID string) (*RefreshToken, error) {
	var token RefreshToken
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	return &token, nil
}

func (s *GormStore) IsActive(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("token_id = ? AND revoked_at IS NULL AND expires_at > ?", tokenID, at.UTC()).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check refresh token: %w", err)
	}

	return count > 0, nil
}

func (s *GormStore) Revoke(ctx context.Context, tokenID string, at time.Time, reason RevokeReason) (bool, error) {
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("token_id = ? AND revoked_at IS NULL", tokenID).
		Updates(map[string]any{
			"revoked_at":     at.UTC(),
			"revoked_reason": string(reason),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Debug("refresh token revoke",
			zap.String("token_id", tokenID),
			zap.String("reason", string(reason)),
			zap.Int64("affected_rows", result.RowsAffected))
	}

	return result.RowsAffected > 0, nil
}

func (s *GormStore) RevokeAll(ctx context.Context, subjectID uint, at time.Time, reason RevokeReason) (int64, error) {
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("subject_id = ? AND revoked_at IS NULL AND expires_at > ?", subjectID, at.UTC()).
		Updates(map[string]any{
			"revoked_at":     at.UTC(),
			"revoked_reason": string(reason),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke subject refresh tokens: %w", result.Error)
	}

	if s.logger != nil {
		s.logger.Debug("subject refresh tokens revoked",
			zap.Uint("subject_id", subjectID),
			zap.String("reason", string(reason)),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// Rotate uses a conditional update so that of several concurrent callers
// presenting the same predecessor exactly one observes a changed row.
func (s *GormStore) Rotate(ctx context.Context, oldTokenID string, next NewRecord) (*RefreshToken, error) {
	if err := validateRecord(next); err != nil {
		return nil, err
	}

	at := next.IssuedAt.UTC()
	successor := next.model()
	successor.RotatedFrom = &oldTokenID

	var absent, committed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&RefreshToken{}).
			Where("token_id = ? AND subject_id = ? AND revoked_at IS NULL AND expires_at > ?",
				oldTokenID, next.SubjectID, at).
			Updates(map[string]any{
				"revoked_at":     at,
				"revoked_reason": string(ReasonRotated),
			})
		if result.Error != nil {
			return result.Error
		}

		if result.RowsAffected == 0 {
			// A retry of a rotation that already committed finds its own
			// successor and reports it instead of a lost race.
			var existing RefreshToken
			err := tx.Where("token_id = ? AND rotated_from = ? AND subject_id = ?",
				next.TokenID, oldTokenID, next.SubjectID).First(&existing).Error
			switch {
			case err == nil:
				*successor = existing
				committed = true
				return nil
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			var previous RefreshToken
			err = tx.Where("token_id = ?", oldTokenID).First(&previous).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				absent = true
				return nil
			case err != nil:
				return err
			case previous.SubjectID != next.SubjectID:
				return ErrSubjectMismatch
			default:
				return ErrNotActive
			}
		}

		return tx.Create(successor).Error
	})

	if err != nil {
		if errors.Is(err, ErrNotActive) || errors.Is(err, ErrSubjectMismatch) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	if absent {
		return nil, nil
	}

	if committed {
		if s.logger != nil {
			s.logger.Warn("refresh token rotation already committed",
				zap.Uint("subject_id", next.SubjectID),
				zap.String("old_token_id", oldTokenID),
				zap.String("token_id", next.TokenID))
		}
		return successor, nil
	}

	if s.logger != nil {
		s.logger.Debug("refresh token rotated",
			zap.Uint("subject_id", next.SubjectID),
			zap.String("old_token_id", oldTokenID),
			zap.String("token_id", next.TokenID))
	}

	return successor, nil
}

func (s *GormStore) ListActive(ctx context.Context, subjectID uint, at time.Time) ([]RefreshToken, error) {
	var tokens []RefreshToken
	err := s.db.WithContext(ctx).
		Where("subject_id = ? AND revoked_at IS NULL AND expires_at > ?", subjectID, at.UTC()).
		Order("issued_at DESC, id DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refresh tokens: %w", err)
	}

	return tokens, nil
}

// Chain returns tokenID and its predecessors, newest first. A rotated_from
// cycle or a chain deeper than maxChainDepth is reported as ErrInvalidRecord.
func (s *GormStore) Chain(ctx context.Context, tokenID string) ([]RefreshToken, error) {
	var chain []RefreshToken
	seen := make(map[string]struct{})
	current := tokenID

	for {
		if _, ok := seen[current]; ok {
			return nil, fmt.Errorf("%w: rotated_from cycle at token %s", ErrInvalidRecord, current)
		}
		if len(chain) == maxChainDepth {
			return nil, fmt.Errorf("%w: chain of token %s exceeds %d links", ErrInvalidRecord, tokenID, maxChainDepth)
		}
		seen[current] = struct{}{}

		token, err := s.GetByTokenID(ctx, current)
		if err != nil {
			return nil, err
		}
		if token == nil {
			break
		}

		chain = append(chain, *token)
		if token.RotatedFrom == nil {
			break
		}
		current = *token.RotatedFrom
	}

	return chain, nil
}

func validateRecord(rec NewRecord) error {
	if rec.TokenID == "" {
		return fmt.Errorf("%w: empty token id", ErrInvalidRecord)
	}

	if !rec.ExpiresAt.After(rec.IssuedAt) {
		return fmt.Errorf("%w: expires_at must be after issued_at", ErrInvalidRecord)
	}

	return nil
}
