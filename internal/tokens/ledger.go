// internal/tokens/ledger.go
package tokens

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"placement-backend/internal/common/config"
	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/common/metrics"
	"placement-backend/internal/models"
)

// Ledger owns company token balances. Every mutation runs inside a
// transaction that row-locks the account, so concurrent debits against the
// same company serialize and the ledger invariant
// purchased_total - used_total == balance holds after every operation.
type Ledger struct {
	db     *sql.DB
	cfg    config.TokensConfig
	logger logger.Logger
}

func NewLedger(db *sql.DB, cfg config.TokensConfig, log logger.Logger) *Ledger {
	return &Ledger{
		db:     db,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "token-ledger"}),
	}
}

// Cost resolves the configured token cost for a semantic action.
func (l *Ledger) Cost(action string) (int, error) {
	cost := l.cfg.CostFor(action)
	if cost < 0 {
		return 0, apperrors.NewUnknownTokenActionError(action)
	}
	return cost, nil
}

// GetOrCreateAccount returns the company's token account, creating it with
// the free starting grant on first access.
func (l *Ledger) GetOrCreateAccount(ctx context.Context, companyID int64) (*models.TokenAccount, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	if err := l.ensureAccount(ctx, tx, companyID); err != nil {
		return nil, err
	}

	account, err := l.readAccount(ctx, tx, companyID, false)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_or_create_account", err)
	}
	return account, nil
}

// Debit atomically charges a company for an action. Wraps DebitInTx in its
// own transaction; callers composing a larger atomic unit (the CV access
// gateway) use DebitInTx directly.
func (l *Ledger) Debit(ctx context.Context, companyID int64, amount int, action string, studentID *int64, description string) (int, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	newBalance, err := l.DebitInTx(ctx, tx, companyID, amount, action, studentID, description)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("debit_commit", err)
	}
	return newBalance, nil
}

// DebitInTx performs the read-check-write-log sequence inside the caller's
// transaction. The SELECT ... FOR UPDATE on the account row makes the whole
// sequence atomic per company; a debit exceeding the balance fails with
// INSUFFICIENT_TOKENS and writes nothing.
func (l *Ledger) DebitInTx(ctx context.Context, tx *sql.Tx, companyID int64, amount int, action string, studentID *int64, description string) (int, error) {
	if amount <= 0 {
		return 0, apperrors.NewValidationFailedError(fmt.Sprintf("debit amount must be positive, got %d", amount))
	}

	if err := l.ensureAccount(ctx, tx, companyID); err != nil {
		return 0, err
	}

	account, err := l.readAccount(ctx, tx, companyID, true)
	if err != nil {
		return 0, err
	}

	if account.Balance < amount {
		metrics.TokenDebitFailures.WithLabelValues(action, "insufficient_tokens").Inc()
		return 0, apperrors.NewInsufficientTokensError(amount, account.Balance)
	}

	newBalance := account.Balance - amount
	_, err = tx.ExecContext(ctx, `
		UPDATE token_accounts
		SET balance = balance - $2, used_total = used_total + $2, updated_at = NOW()
		WHERE company_id = $1`,
		companyID, amount)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("debit_update", err)
	}

	if err := l.appendTransaction(ctx, tx, &models.TokenTransaction{
		Reference:    uuid.New().String(),
		CompanyID:    companyID,
		StudentID:    studentID,
		Kind:         models.TransactionKindUsage,
		Action:       action,
		SignedAmount: -amount,
		Description:  description,
		BalanceAfter: newBalance,
	}); err != nil {
		return 0, err
	}

	metrics.TokenDebits.WithLabelValues(action).Inc()
	metrics.TokensSpent.WithLabelValues(action).Add(float64(amount))

	l.logger.Info("tokens debited", map[string]interface{}{
		"companyId":  companyID,
		"action":     action,
		"amount":     amount,
		"newBalance": newBalance,
	})

	return newBalance, nil
}

// Credit atomically grants tokens to a company and logs a purchase
// transaction. Payment verification happens upstream.
func (l *Ledger) Credit(ctx context.Context, companyID int64, amount int, description string) (int, error) {
	if amount <= 0 {
		return 0, apperrors.NewValidationFailedError(fmt.Sprintf("credit amount must be positive, got %d", amount))
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	if err := l.ensureAccount(ctx, tx, companyID); err != nil {
		return 0, err
	}

	account, err := l.readAccount(ctx, tx, companyID, true)
	if err != nil {
		return 0, err
	}

	newBalance := account.Balance + amount
	_, err = tx.ExecContext(ctx, `
		UPDATE token_accounts
		SET balance = balance + $2, purchased_total = purchased_total + $2, updated_at = NOW()
		WHERE company_id = $1`,
		companyID, amount)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("credit_update", err)
	}

	if err := l.appendTransaction(ctx, tx, &models.TokenTransaction{
		Reference:    uuid.New().String(),
		CompanyID:    companyID,
		Kind:         models.TransactionKindPurchase,
		Action:       models.TransactionKindPurchase,
		SignedAmount: amount,
		Description:  description,
		BalanceAfter: newBalance,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("credit_commit", err)
	}

	l.logger.Info("tokens credited", map[string]interface{}{
		"companyId":  companyID,
		"amount":     amount,
		"newBalance": newBalance,
	})

	return newBalance, nil
}

// Balance returns the read-only projection {available, used, total}.
func (l *Ledger) Balance(ctx context.Context, companyID int64) (*models.TokenBalance, error) {
	account, err := l.GetOrCreateAccount(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return &models.TokenBalance{
		Available: account.Balance,
		Used:      account.UsedTotal,
		Total:     account.PurchasedTotal,
	}, nil
}

// ensureAccount lazily creates the account with the starting grant. The
// ON CONFLICT guard makes concurrent first accesses converge on one row.
func (l *Ledger) ensureAccount(ctx context.Context, tx *sql.Tx, companyID int64) error {
	grant := l.cfg.StartingGrant
	res, err := tx.ExecContext(ctx, `
		INSERT INTO token_accounts (company_id, balance, used_total, purchased_total, created_at, updated_at)
		VALUES ($1, $2, 0, $2, NOW(), NOW())
		ON CONFLICT (company_id) DO NOTHING`,
		companyID, grant)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("ensure_account", err)
	}

	created, err := res.RowsAffected()
	if err != nil || created == 0 {
		return nil
	}

	l.logger.Info("token account created", map[string]interface{}{
		"companyId": companyID,
		"grant":     grant,
	})

	if grant == 0 {
		return nil
	}
	return l.appendTransaction(ctx, tx, &models.TokenTransaction{
		Reference:    uuid.New().String(),
		CompanyID:    companyID,
		Kind:         models.TransactionKindPurchase,
		Action:       models.TransactionKindPurchase,
		SignedAmount: grant,
		Description:  "free starting grant",
		BalanceAfter: grant,
	})
}

func (l *Ledger) readAccount(ctx context.Context, tx *sql.Tx, companyID int64, forUpdate bool) (*models.TokenAccount, error) {
	query := `
		SELECT id, company_id, balance, used_total, purchased_total, created_at, updated_at
		FROM token_accounts
		WHERE company_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var account models.TokenAccount
	err := tx.QueryRowContext(ctx, query, companyID).Scan(
		&account.ID,
		&account.CompanyID,
		&account.Balance,
		&account.UsedTotal,
		&account.PurchasedTotal,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("read_account", err)
	}
	return &account, nil
}

func (l *Ledger) appendTransaction(ctx context.Context, tx *sql.Tx, t *models.TokenTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO token_transactions (reference, company_id, student_id, kind, action, signed_amount, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		t.Reference, t.CompanyID, t.StudentID, t.Kind, t.Action, t.SignedAmount, t.Description, t.BalanceAfter)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("append_transaction", err)
	}
	return nil
}
