package rotation

import (
	"context"
	"fmt"

	"github.com/tech-arch1tect/tokenchain/autherr"
	"github.com/tech-arch1tect/tokenchain/config"
	"github.com/tech-arch1tect/tokenchain/services/refreshtoken"
	"go.uber.org/zap"
)

// inactive explains why tokenID cannot be refreshed. A token that was rotated
// away is a replay and goes through reuse handling before being rejected.
func (e *Engine) inactive(ctx context.Context, subjectID uint, tokenID string) error {
	record, err := e.store.GetByTokenID(ctx, tokenID)
	if err != nil {
		return err
	}

	if record == nil {
		return autherr.New(autherr.KindNotActive, fmt.Errorf("refresh token %s has no record", tokenID))
	}

	if record.SubjectID != subjectID {
		return autherr.New(autherr.KindInvalid, refreshtoken.ErrSubjectMismatch)
	}

	state := record.State(e.now())
	if state == refreshtoken.StateRotated {
		if err := e.handleReuse(ctx, subjectID, tokenID); err != nil {
			return err
		}
	}

	return autherr.New(autherr.KindNotActive, fmt.Errorf("refresh token is %s", state))
}

func (e *Engine) handleReuse(ctx context.Context, subjectID uint, tokenID string) error {
	e.metrics.ObserveReuse(string(e.reusePolicy))

	fields := []zap.Field{
		zap.Uint("subject_id", subjectID),
		zap.String("token_id", tokenID),
		zap.String("policy", string(e.reusePolicy)),
	}

	if count, err := e.tracker.Record(ctx, subjectID, tokenID); err != nil {
		e.logger.Warn("failed to record refresh token reuse", append(fields, zap.Error(err))...)
	} else if count > 0 {
		fields = append(fields, zap.Int64("reuse_count", count))
	}

	chain, err := e.store.Chain(ctx, tokenID)
	if err != nil {
		e.logger.Warn("failed to walk reused refresh token chain", append(fields, zap.Error(err))...)
	} else if len(chain) > 0 {
		fields = append(fields,
			zap.Int("chain_length", len(chain)),
			zap.String("chain_head", chain[len(chain)-1].TokenID))
	}

	e.logger.Warn("rotated refresh token presented again", fields...)

	if e.reusePolicy != config.ReuseRevokeAll {
		return nil
	}

	count, err := e.store.RevokeAll(ctx, subjectID, e.now(), refreshtoken.ReasonReuseDetected)
	if err != nil {
		return err
	}

	e.metrics.ObserveRevoked(string(refreshtoken.ReasonReuseDetected), count)
	e.logger.Warn("revoked all sessions after refresh token reuse", append(fields, zap.Int64("count", count))...)

	return nil
}

// History returns the chain that ends in the token identified by the given
// refresh token, newest first. The token may be inactive.
func (e *Engine) History(ctx context.Context, token string) ([]refreshtoken.RefreshToken, error) {
	claims, err := e.decodeRefresh(token)
	if err != nil {
		return nil, err
	}

	subjectID, tokenID, err := claims.Identity()
	if err != nil {
		return nil, err
	}

	chain, err := e.store.Chain(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if len(chain) > 0 && chain[0].SubjectID != subjectID {
		return nil, autherr.New(autherr.KindInvalid, refreshtoken.ErrSubjectMismatch)
	}

	return chain, nil
}

// ReuseCount reports how many reuse events were recorded for the subject
// within the tracking window. It is zero when tracking is disabled.
func (e *Engine) ReuseCount(ctx context.Context, subjectID uint) (int64, error) {
	return e.tracker.Count(ctx, subjectID)
}
