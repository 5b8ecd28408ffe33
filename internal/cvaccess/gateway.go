// internal/cvaccess/gateway.go
package cvaccess

import (
	"context"
	"database/sql"
	"fmt"

	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/models"
	"placement-backend/internal/notify"
	"placement-backend/internal/reveals"
	"placement-backend/internal/tokens"
)

// Access types returned to the caller.
const (
	AccessTypeFree               = "free"
	AccessTypePreviouslyRevealed = "previously_revealed"
	AccessTypePaid               = "paid"
)

// Options controls one access request.
type Options struct {
	// ViaIntelligentSearch marks accesses coming from the candidate search
	// flow, which are token-metered. Direct application-based accesses are
	// free and never touch the ledger.
	ViaIntelligentSearch bool
	// CostTokens overrides the configured cost for the action when positive.
	CostTokens int
}

// Result is the outcome of an access request, CV payload included.
type Result struct {
	AccessType         string            `json:"accessType"`
	TokensUsed         int               `json:"tokensUsed"`
	WasAlreadyRevealed bool              `json:"wasAlreadyRevealed"`
	BalanceRemaining   int               `json:"balanceRemaining"`
	CV                 *models.StudentCV `json:"cv"`
}

// Gateway is the single entry point for "view CV" and "contact student"
// actions. The paid path runs debit and reveal insert in one transaction, so
// an aborted call leaves no partial charge; the reveal record's uniqueness
// makes every later access for the pair free.
type Gateway struct {
	db       *sql.DB
	ledger   *tokens.Ledger
	registry *reveals.Registry
	store    Store
	emitter  notify.Emitter
	logger   logger.Logger
}

func NewGateway(db *sql.DB, ledger *tokens.Ledger, registry *reveals.Registry, store Store, emitter notify.Emitter, log logger.Logger) *Gateway {
	return &Gateway{
		db:       db,
		ledger:   ledger,
		registry: registry,
		store:    store,
		emitter:  emitter,
		logger:   log.WithFields(map[string]interface{}{"component": "cv-access-gateway"}),
	}
}

// AccessCV releases a student's CV to a company, charging the view cost when
// the access comes through intelligent search and the pair has not been
// revealed before.
func (g *Gateway) AccessCV(ctx context.Context, companyID, studentID int64, opts Options) (*Result, error) {
	return g.access(ctx, companyID, studentID, opts, models.ActionViewCV, models.RevealTypeIntelligentSearch, models.Notification{
		Title:    "CV consultado",
		Message:  "Una empresa ha consultado tu CV",
		Type:     models.NotificationCVAccessed,
		Priority: models.PriorityNormal,
	})
}

// ContactStudent releases the student's contact data, charging the contact
// cost. It shares the reveal registry with AccessCV: once either action has
// revealed the pair, both are free from then on.
func (g *Gateway) ContactStudent(ctx context.Context, companyID, studentID int64, opts Options) (*Result, error) {
	return g.access(ctx, companyID, studentID, opts, models.ActionContactStudent, models.RevealTypeDirectContact, models.Notification{
		Title:    "Solicitud de contacto",
		Message:  "Una empresa quiere contactar contigo",
		Type:     models.NotificationStudentContacted,
		Priority: models.PriorityHigh,
	})
}

func (g *Gateway) access(ctx context.Context, companyID, studentID int64, opts Options, action, revealType string, event models.Notification) (*Result, error) {
	student, err := g.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if !opts.ViaIntelligentSearch {
		cv, err := g.store.GetStudentCV(ctx, studentID)
		if err != nil {
			return nil, err
		}
		g.afterAccess(ctx, companyID, student, event)
		return &Result{AccessType: AccessTypeFree, CV: cv}, nil
	}

	revealed, err := g.registry.IsRevealed(ctx, companyID, studentID)
	if err != nil {
		return nil, err
	}
	if revealed {
		cv, err := g.store.GetStudentCV(ctx, studentID)
		if err != nil {
			return nil, err
		}
		return &Result{AccessType: AccessTypePreviouslyRevealed, WasAlreadyRevealed: true, CV: cv}, nil
	}

	cost := opts.CostTokens
	if cost <= 0 {
		cost, err = g.ledger.Cost(action)
		if err != nil {
			return nil, err
		}
	}

	// Loaded before the charge so a broken CV row never costs tokens.
	cv, err := g.store.GetStudentCV(ctx, studentID)
	if err != nil {
		return nil, err
	}

	balance, wonRace, err := g.debitAndReveal(ctx, companyID, studentID, cost, action, revealType)
	if err != nil {
		return nil, err
	}
	if !wonRace {
		// A concurrent request revealed the pair first; our debit was
		// rolled back with the transaction.
		return &Result{AccessType: AccessTypePreviouslyRevealed, WasAlreadyRevealed: true, CV: cv}, nil
	}

	g.afterAccess(ctx, companyID, student, event)

	return &Result{
		AccessType:       AccessTypePaid,
		TokensUsed:       cost,
		BalanceRemaining: balance,
		CV:               cv,
	}, nil
}

// debitAndReveal is the atomic paid path: one transaction row-locks the
// account, debits it, appends the ledger transaction, and inserts the reveal
// record. The unique constraint on (company_id, student_id) is the backstop
// for two requests racing past the isRevealed check; the loser's rollback
// undoes its debit. Returns wonRace=false in that case.
func (g *Gateway) debitAndReveal(ctx context.Context, companyID, studentID int64, cost int, action, revealType string) (int, bool, error) {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	balance, err := g.ledger.DebitInTx(ctx, tx, companyID, cost, action, &studentID,
		fmt.Sprintf("%s student %d", action, studentID))
	if err != nil {
		return 0, false, err
	}

	if err := g.registry.RecordRevealInTx(ctx, tx, companyID, studentID, cost, revealType); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeDuplicateReveal) {
			g.logger.Info("lost reveal race, debit rolled back", map[string]interface{}{
				"companyId": companyID,
				"studentId": studentID,
			})
			g.registry.MarkRevealed(ctx, companyID, studentID)
			return 0, false, nil
		}
		return 0, false, err
	}

	if err := tx.Commit(); err != nil {
		return 0, false, apperrors.NewQueryExecutionFailedError("cv_access_commit", err)
	}

	g.registry.MarkRevealed(ctx, companyID, studentID)
	return balance, true, nil
}

// afterAccess runs the best-effort side effects of a granted access: pending
// applications from this student to this company move to reviewed, and the
// student is notified. Neither outcome affects the gateway call.
func (g *Gateway) afterAccess(ctx context.Context, companyID int64, student *models.Student, event models.Notification) {
	reviewed, err := g.store.MarkApplicationsReviewed(ctx, companyID, student.ID)
	if err != nil {
		g.logger.Warn("marking applications reviewed failed", map[string]interface{}{
			"companyId": companyID,
			"studentId": student.ID,
			"error":     err,
		})
	} else if reviewed > 0 {
		g.logger.Info("applications marked reviewed", map[string]interface{}{
			"companyId": companyID,
			"studentId": student.ID,
			"count":     reviewed,
		})
	}

	if g.emitter == nil {
		return
	}
	event.Metadata = map[string]interface{}{
		"companyId": companyID,
		"studentId": student.ID,
	}
	g.emitter.Emit(ctx, student.UserID, event)
}
