// internal/reveals/registry.go
package reveals

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/common/metrics"
)

// Postgres unique_violation
const uniqueViolation = "23505"

// Registry is the durable set of (company, student) pairs whose CV access
// has been paid for. Record existence is the single source of idempotence
// truth; records are created exactly once and never updated or deleted.
type Registry struct {
	db     *sql.DB
	cache  *Cache
	logger logger.Logger
}

func NewRegistry(db *sql.DB, cache *Cache, log logger.Logger) *Registry {
	return &Registry{
		db:     db,
		cache:  cache,
		logger: log.WithFields(map[string]interface{}{"component": "reveal-registry"}),
	}
}

// IsRevealed reports whether the pair has a reveal record. Checks the cache
// first; a database hit back-fills the cache.
func (r *Registry) IsRevealed(ctx context.Context, companyID, studentID int64) (bool, error) {
	if r.cache.IsRevealed(ctx, companyID, studentID) {
		return true, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM cv_reveals
			WHERE company_id = $1 AND student_id = $2
		)`, companyID, studentID).Scan(&exists)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("is_revealed", err)
	}

	if exists {
		r.cache.MarkRevealed(ctx, companyID, studentID)
	}
	return exists, nil
}

// RecordRevealInTx inserts the reveal record inside the caller's
// transaction. A unique-constraint violation means a concurrent writer won
// the pair; it surfaces as DUPLICATE_REVEAL, which callers treat as
// idempotent success after rolling back their own debit.
//
// The cache is deliberately not written here: the caller marks it after the
// transaction commits, so an aborted transaction never poisons the cache.
func (r *Registry) RecordRevealInTx(ctx context.Context, tx *sql.Tx, companyID, studentID int64, tokensUsed int, revealType string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cv_reveals (company_id, student_id, tokens_used, reveal_type, revealed_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		companyID, studentID, tokensUsed, revealType)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
			return apperrors.NewDuplicateRevealError(companyID, studentID)
		}
		return apperrors.NewQueryExecutionFailedError("record_reveal", err)
	}

	metrics.RevealsRecorded.WithLabelValues(revealType).Inc()

	r.logger.Info("reveal recorded", map[string]interface{}{
		"companyId":  companyID,
		"studentId":  studentID,
		"tokensUsed": tokensUsed,
		"revealType": revealType,
	})
	return nil
}

// MarkRevealed back-fills the cache after a successful commit.
func (r *Registry) MarkRevealed(ctx context.Context, companyID, studentID int64) {
	r.cache.MarkRevealed(ctx, companyID, studentID)
}
