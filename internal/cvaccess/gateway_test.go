// internal/cvaccess/gateway_test.go
package cvaccess

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"placement-backend/internal/common/config"
	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/models"
	"placement-backend/internal/reveals"
	"placement-backend/internal/tokens"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeStore struct {
	student       *models.Student
	cv            *models.StudentCV
	reviewedCalls int
}

func (f *fakeStore) GetStudent(_ context.Context, studentID int64) (*models.Student, error) {
	if f.student == nil {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	return f.student, nil
}

func (f *fakeStore) GetStudentCV(_ context.Context, studentID int64) (*models.StudentCV, error) {
	if f.cv == nil {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	return f.cv, nil
}

func (f *fakeStore) MarkApplicationsReviewed(_ context.Context, _, _ int64) (int64, error) {
	f.reviewedCalls++
	return 1, nil
}

type fakeEmitter struct {
	events []models.Notification
}

func (f *fakeEmitter) Emit(_ context.Context, _ int64, n models.Notification) {
	f.events = append(f.events, n)
}

func testStore() *fakeStore {
	return &fakeStore{
		student: &models.Student{ID: 5, UserID: 1005, Name: "Ana", Active: true, VerificationStatus: models.VerificationVerified},
		cv: &models.StudentCV{
			StudentID: 5,
			Name:      "Ana",
			Email:     "ana@example.com",
			Skills:    []models.CVSkill{{Name: "javascript", Level: "alto"}},
		},
	}
}

func newGateway(db *sql.DB, store Store, emitter *fakeEmitter) *Gateway {
	log := logger.NewNoOpLogger()
	cfg := config.TokensConfig{
		StartingGrant: 10,
		Costs:         map[string]int{"view_cv": 2, "contact_student": 1},
	}
	ledger := tokens.NewLedger(db, cfg, log)
	registry := reveals.NewRegistry(db, nil, log)
	return NewGateway(db, ledger, registry, store, emitter, log)
}

func accountRows(balance, used, purchased int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "company_id", "balance", "used_total", "purchased_total", "created_at", "updated_at"}).
		AddRow(1, 42, balance, used, purchased, now, now)
}

func expectNotRevealed(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
}

// expectPaidDebit mocks the full atomic paid path up to, but excluding, the
// reveal insert: begin, lazy-create no-op, row-locked read, balance update,
// ledger transaction append.
func expectPaidDebit(mock sqlmock.Sqlmock, balance, cost int, action string) {
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO token_accounts`).
		WithArgs(int64(42), 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, company_id, balance`).
		WithArgs(int64(42)).
		WillReturnRows(accountRows(balance, 10-balance, 10))
	mock.ExpectExec(`UPDATE token_accounts`).
		WithArgs(int64(42), cost).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO token_transactions`).
		WithArgs(sqlmock.AnyArg(), int64(42), sqlmock.AnyArg(), "usage", action, -cost, sqlmock.AnyArg(), balance-cost).
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ==========================
// Free & Previously Revealed Paths
// ==========================

func TestAccessCV_DirectAccessIsFree(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	store := testStore()
	emitter := &fakeEmitter{}
	g := newGateway(db, store, emitter)

	result, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: false})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypeFree, result.AccessType)
	assert.Equal(t, 0, result.TokensUsed)
	assert.False(t, result.WasAlreadyRevealed)
	assert.Equal(t, "ana@example.com", result.CV.Email)
	assert.Equal(t, 1, store.reviewedCalls)
	assert.Len(t, emitter.events, 1)
	assert.Equal(t, models.NotificationCVAccessed, emitter.events[0].Type)
	// The ledger and registry were never touched.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessCV_PreviouslyRevealed(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	emitter := &fakeEmitter{}
	g := newGateway(db, testStore(), emitter)

	result, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypePreviouslyRevealed, result.AccessType)
	assert.Equal(t, 0, result.TokensUsed)
	assert.True(t, result.WasAlreadyRevealed)
	assert.NotNil(t, result.CV)
	assert.Empty(t, emitter.events, "repeat access must not re-notify the student")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Paid Path
// ==========================

func TestAccessCV_PaidPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectNotRevealed(mock)
	expectPaidDebit(mock, 10, 2, "view_cv")
	mock.ExpectExec(`INSERT INTO cv_reveals`).
		WithArgs(int64(42), int64(5), 2, models.RevealTypeIntelligentSearch).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	store := testStore()
	emitter := &fakeEmitter{}
	g := newGateway(db, store, emitter)

	result, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypePaid, result.AccessType)
	assert.Equal(t, 2, result.TokensUsed)
	assert.Equal(t, 8, result.BalanceRemaining)
	assert.False(t, result.WasAlreadyRevealed)
	assert.Equal(t, "ana@example.com", result.CV.Email)
	assert.Equal(t, 1, store.reviewedCalls)
	assert.Len(t, emitter.events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessCV_InsufficientTokens(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectNotRevealed(mock)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO token_accounts`).
		WithArgs(int64(42), 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT id, company_id, balance`).
		WithArgs(int64(42)).
		WillReturnRows(accountRows(1, 9, 10))
	// No balance update, no transaction append, no reveal insert.
	mock.ExpectRollback()

	emitter := &fakeEmitter{}
	g := newGateway(db, testStore(), emitter)

	_, err = g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInsufficientTokens))

	se, _ := apperrors.AsStandardError(err)
	assert.Equal(t, 2, se.Metadata["required"])
	assert.Equal(t, 1, se.Metadata["available"])

	assert.Empty(t, emitter.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessCV_CostOverride(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectNotRevealed(mock)
	expectPaidDebit(mock, 10, 5, "view_cv")
	mock.ExpectExec(`INSERT INTO cv_reveals`).
		WithArgs(int64(42), int64(5), 5, models.RevealTypeIntelligentSearch).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	g := newGateway(db, testStore(), &fakeEmitter{})

	result, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true, CostTokens: 5})

	assert.NoError(t, err)
	assert.Equal(t, 5, result.TokensUsed)
	assert.Equal(t, 5, result.BalanceRemaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Duplicate Reveal Race
// ==========================

func TestAccessCV_LostRevealRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectNotRevealed(mock)
	expectPaidDebit(mock, 10, 2, "view_cv")
	// A concurrent request inserted the reveal first; the rollback undoes
	// this request's debit.
	mock.ExpectExec(`INSERT INTO cv_reveals`).
		WithArgs(int64(42), int64(5), 2, models.RevealTypeIntelligentSearch).
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	emitter := &fakeEmitter{}
	g := newGateway(db, testStore(), emitter)

	result, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypePreviouslyRevealed, result.AccessType)
	assert.Equal(t, 0, result.TokensUsed)
	assert.True(t, result.WasAlreadyRevealed)
	assert.NotNil(t, result.CV)
	assert.Empty(t, emitter.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Idempotence Across Calls
// ==========================

func TestAccessCV_SecondCallIsFree(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// First call pays.
	expectNotRevealed(mock)
	expectPaidDebit(mock, 10, 2, "view_cv")
	mock.ExpectExec(`INSERT INTO cv_reveals`).
		WithArgs(int64(42), int64(5), 2, models.RevealTypeIntelligentSearch).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Second call sees the reveal record and stops there.
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	g := newGateway(db, testStore(), &fakeEmitter{})

	first, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})
	assert.NoError(t, err)
	assert.Equal(t, AccessTypePaid, first.AccessType)
	assert.Equal(t, 8, first.BalanceRemaining)

	second, err := g.AccessCV(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})
	assert.NoError(t, err)
	assert.Equal(t, AccessTypePreviouslyRevealed, second.AccessType)
	assert.Equal(t, 0, second.TokensUsed)
	assert.True(t, second.WasAlreadyRevealed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Contact Student
// ==========================

func TestContactStudent_SharesRevealIdempotence(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	// The pair was revealed by an earlier view-cv: contact is free.
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	g := newGateway(db, testStore(), &fakeEmitter{})

	result, err := g.ContactStudent(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypePreviouslyRevealed, result.AccessType)
	assert.Equal(t, 0, result.TokensUsed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContactStudent_PaidUsesContactCost(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	expectNotRevealed(mock)
	expectPaidDebit(mock, 10, 1, "contact_student")
	mock.ExpectExec(`INSERT INTO cv_reveals`).
		WithArgs(int64(42), int64(5), 1, models.RevealTypeDirectContact).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	emitter := &fakeEmitter{}
	g := newGateway(db, testStore(), emitter)

	result, err := g.ContactStudent(context.Background(), 42, 5, Options{ViaIntelligentSearch: true})

	assert.NoError(t, err)
	assert.Equal(t, AccessTypePaid, result.AccessType)
	assert.Equal(t, 1, result.TokensUsed)
	assert.Equal(t, 9, result.BalanceRemaining)
	assert.Len(t, emitter.events, 1)
	assert.Equal(t, models.NotificationStudentContacted, emitter.events[0].Type)
	assert.Equal(t, models.PriorityHigh, emitter.events[0].Priority)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Missing Student
// ==========================

func TestAccessCV_StudentNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	g := newGateway(db, &fakeStore{}, &fakeEmitter{})

	_, err = g.AccessCV(context.Background(), 42, 99, Options{ViaIntelligentSearch: true})

	assert.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
