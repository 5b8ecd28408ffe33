// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"placement-backend/internal/common/config"
	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/cvaccess"
	"placement-backend/internal/models"
	"placement-backend/internal/reveals"
	"placement-backend/internal/search"
	"placement-backend/internal/tokens"
)

const testSecret = "test-secret"

// ==========================
// Test Helper Functions
// ==========================

type fakeSearchStore struct {
	students []models.Student
	skills   map[int64][]models.CVSkill
}

func (f *fakeSearchStore) GetOffer(_ context.Context, offerID int64) (*models.Offer, error) {
	return nil, apperrors.NewNotFoundError("offer", offerID)
}

func (f *fakeSearchStore) AppliedStudentIDs(_ context.Context, _ int64) (map[int64]bool, error) {
	return map[int64]bool{}, nil
}

func (f *fakeSearchStore) AppliedStudentIDsForCompany(_ context.Context, _ int64) (map[int64]bool, error) {
	return map[int64]bool{}, nil
}

func (f *fakeSearchStore) ActiveStudents(_ context.Context, _ search.Filters, _ int) ([]models.Student, error) {
	return f.students, nil
}

func (f *fakeSearchStore) StudentSkills(_ context.Context, studentID int64) ([]models.CVSkill, error) {
	return f.skills[studentID], nil
}

type fakeCVStore struct {
	student *models.Student
	cv      *models.StudentCV
}

func (f *fakeCVStore) GetStudent(_ context.Context, studentID int64) (*models.Student, error) {
	if f.student == nil {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	return f.student, nil
}

func (f *fakeCVStore) GetStudentCV(_ context.Context, studentID int64) (*models.StudentCV, error) {
	if f.cv == nil {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	return f.cv, nil
}

func (f *fakeCVStore) MarkApplicationsReviewed(_ context.Context, _, _ int64) (int64, error) {
	return 0, nil
}

type testEnv struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	db     *sql.DB
}

func newTestEnv(t *testing.T, searchStore search.Store, cvStore cvaccess.Store) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewNoOpLogger()
	cfg := config.TokensConfig{
		StartingGrant: 10,
		Costs:         map[string]int{"view_cv": 2, "contact_student": 1},
	}

	ledger := tokens.NewLedger(db, cfg, log)
	registry := reveals.NewRegistry(db, nil, log)
	orchestrator := search.NewOrchestrator(searchStore, nil, 2, 100, log)
	gateway := cvaccess.NewGateway(db, ledger, registry, cvStore, nil, log)

	handlers := NewHandlers(orchestrator, gateway, ledger, nil, nil, log)
	return &testEnv{
		router: NewRouter(handlers, testSecret, log),
		mock:   mock,
		db:     db,
	}
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	assert.NoError(t, err)
	return signed
}

func companyToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"userId":    float64(1),
		"companyId": float64(42),
		"role":      "company",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
}

func doRequest(env *testEnv, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// ==========================
// Authentication
// ==========================

func TestAPI_RejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	w := doRequest(env, http.MethodPost, "/api/search", "", map[string]interface{}{"offerId": 1})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_RejectsTokenWithoutCompany(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	token := signToken(t, jwt.MapClaims{
		"userId": float64(7),
		"role":   "student",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	w := doRequest(env, http.MethodPost, "/api/search", token, map[string]interface{}{"offerId": 1})

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body apperrors.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeForbidden, body.Code)
}

// ==========================
// Search
// ==========================

func TestSearch_AdHocReturnsRankedCandidates(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{
		students: []models.Student{
			{ID: 1, UserID: 1001, Name: "Ana", Active: true, VerificationStatus: models.VerificationUnverified},
		},
		skills: map[int64][]models.CVSkill{
			1: {{Name: "javascript", Level: "alto"}},
		},
	}, &fakeCVStore{})

	w := doRequest(env, http.MethodPost, "/api/search", companyToken(t), map[string]interface{}{
		"skills": []map[string]interface{}{{"name": "javascript", "level": 2}},
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var result search.Result
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 1, result.TotalFound)
	assert.Equal(t, "ad_hoc", result.SearchType)
	assert.Equal(t, int64(1), result.Candidates[0].Student.ID)
}

func TestSearch_RejectsBodyWithoutOfferOrSkills(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	w := doRequest(env, http.MethodPost, "/api/search", companyToken(t), map[string]interface{}{
		"filters": map[string]interface{}{"grade": "superior"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body apperrors.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeValidationFailed, body.Code)
}

func TestSearch_UnknownOfferIs404(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	w := doRequest(env, http.MethodPost, "/api/search", companyToken(t), map[string]interface{}{"offerId": 77})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ==========================
// CV Access
// ==========================

func TestViewCV_InsufficientTokensIs402(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{
		student: &models.Student{ID: 5, UserID: 1005, Name: "Ana"},
		cv:      &models.StudentCV{StudentID: 5, Name: "Ana", Email: "ana@example.com"},
	})

	env.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	env.mock.ExpectBegin()
	env.mock.ExpectExec(`INSERT INTO token_accounts`).
		WithArgs(int64(42), 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectQuery(`SELECT id, company_id, balance`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "balance", "used_total", "purchased_total", "created_at", "updated_at"}).
			AddRow(1, 42, 1, 9, 10, time.Now(), time.Now()))
	env.mock.ExpectRollback()

	w := doRequest(env, http.MethodPost, "/api/students/5/view-cv", companyToken(t), map[string]interface{}{
		"fromIntelligentSearch": true,
	})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	var body apperrors.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.ErrCodeInsufficientTokens, body.Code)
	assert.Equal(t, float64(2), body.Metadata["required"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestViewCV_DirectAccessReturnsCV(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{
		student: &models.Student{ID: 5, UserID: 1005, Name: "Ana"},
		cv:      &models.StudentCV{StudentID: 5, Name: "Ana", Email: "ana@example.com"},
	})

	w := doRequest(env, http.MethodPost, "/api/students/5/view-cv", companyToken(t), map[string]interface{}{
		"fromIntelligentSearch": false,
	})

	assert.Equal(t, http.StatusOK, w.Code)

	var result cvaccess.Result
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, cvaccess.AccessTypeFree, result.AccessType)
	assert.Equal(t, 0, result.TokensUsed)
	assert.Equal(t, "ana@example.com", result.CV.Email)
}

func TestViewCV_InvalidStudentID(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	w := doRequest(env, http.MethodPost, "/api/students/abc/view-cv", companyToken(t), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// ==========================
// Token Balance
// ==========================

func TestTokenBalance(t *testing.T) {
	env := newTestEnv(t, &fakeSearchStore{}, &fakeCVStore{})

	env.mock.ExpectBegin()
	env.mock.ExpectExec(`INSERT INTO token_accounts`).
		WithArgs(int64(42), 10).
		WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectQuery(`SELECT id, company_id, balance`).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "balance", "used_total", "purchased_total", "created_at", "updated_at"}).
			AddRow(1, 42, 6, 14, 20, time.Now(), time.Now()))
	env.mock.ExpectCommit()

	w := doRequest(env, http.MethodGet, "/api/tokens/balance", companyToken(t), nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]int
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 6, body["balance"])
	assert.Equal(t, 14, body["used"])
	assert.Equal(t, 20, body["total"])
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
