// internal/api/handlers.go
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"placement-backend/internal/common/auth"
	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/common/logger"
	"placement-backend/internal/common/observability"
	"placement-backend/internal/common/validation"
	"placement-backend/internal/cvaccess"
	"placement-backend/internal/models"
	"placement-backend/internal/notify"
	"placement-backend/internal/search"
	"placement-backend/internal/tokens"
)

// Handlers holds the HTTP endpoints over the candidate-matching core.
type Handlers struct {
	orchestrator *search.Orchestrator
	gateway      *cvaccess.Gateway
	ledger       *tokens.Ledger
	emitter      notify.Emitter
	obs          *observability.Observability
	logger       logger.Logger
}

func NewHandlers(orchestrator *search.Orchestrator, gateway *cvaccess.Gateway, ledger *tokens.Ledger, emitter notify.Emitter, obs *observability.Observability, log logger.Logger) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		gateway:      gateway,
		ledger:       ledger,
		emitter:      emitter,
		obs:          obs,
		logger:       log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

type searchRequest struct {
	OfferID *int64 `json:"offerId"`
	Skills  []struct {
		Name  string `json:"name"`
		Level int    `json:"level"`
	} `json:"skills"`
	Filters struct {
		ProfamilyID *int64 `json:"profamilyId"`
		Grade       string `json:"grade"`
		Car         *bool  `json:"car"`
	} `json:"filters"`
}

type accessRequest struct {
	FromIntelligentSearch bool `json:"fromIntelligentSearch"`
}

type purchaseRequest struct {
	Amount int `json:"amount"`
}

// POST /api/search
func (h *Handlers) Search(c *gin.Context) {
	started := time.Now()

	companyID, err := auth.CompanyID(c)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}

	var req searchRequest
	if err := h.bindValidated(c, searchSchema, &req); err != nil {
		h.respondError(c, "search", err)
		return
	}

	criteria := search.Criteria{
		OfferID: req.OfferID,
		Filters: search.Filters{
			ProfamilyID: req.Filters.ProfamilyID,
			Grade:       req.Filters.Grade,
			Car:         req.Filters.Car,
		},
	}
	for _, s := range req.Skills {
		criteria.Skills = append(criteria.Skills, models.RequiredSkill{Name: s.Name, Level: s.Level})
	}

	result, err := h.orchestrator.Search(c.Request.Context(), companyID, criteria)
	if err != nil {
		h.respondError(c, "search", err)
		return
	}

	h.recordSuccess(c, "search", started)
	c.JSON(http.StatusOK, result)
}

// POST /api/students/:id/view-cv
func (h *Handlers) ViewCV(c *gin.Context) {
	h.handleAccess(c, "view_cv", h.gateway.AccessCV)
}

// POST /api/students/:id/contact
func (h *Handlers) ContactStudent(c *gin.Context) {
	h.handleAccess(c, "contact_student", h.gateway.ContactStudent)
}

func (h *Handlers) handleAccess(c *gin.Context, operation string, access func(ctx context.Context, companyID, studentID int64, opts cvaccess.Options) (*cvaccess.Result, error)) {
	started := time.Now()

	companyID, err := auth.CompanyID(c)
	if err != nil {
		h.respondError(c, operation, err)
		return
	}

	studentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || studentID < 1 {
		h.respondError(c, operation, apperrors.NewValidationFailedError(fmt.Sprintf("invalid student id %q", c.Param("id"))))
		return
	}

	var req accessRequest
	if c.Request.ContentLength > 0 {
		if err := h.bindValidated(c, accessSchema, &req); err != nil {
			h.respondError(c, operation, err)
			return
		}
	}

	result, err := access(c.Request.Context(), companyID, studentID, cvaccess.Options{
		ViaIntelligentSearch: req.FromIntelligentSearch,
	})
	if err != nil {
		h.respondError(c, operation, err)
		return
	}

	h.recordSuccess(c, operation, started)
	c.JSON(http.StatusOK, result)
}

// GET /api/tokens/balance
func (h *Handlers) TokenBalance(c *gin.Context) {
	started := time.Now()

	companyID, err := auth.CompanyID(c)
	if err != nil {
		h.respondError(c, "token_balance", err)
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), companyID)
	if err != nil {
		h.respondError(c, "token_balance", err)
		return
	}

	h.recordSuccess(c, "token_balance", started)
	c.JSON(http.StatusOK, gin.H{
		"balance": balance.Available,
		"used":    balance.Used,
		"total":   balance.Total,
	})
}

// POST /api/tokens/purchase
func (h *Handlers) PurchaseTokens(c *gin.Context) {
	started := time.Now()

	companyID, err := auth.CompanyID(c)
	if err != nil {
		h.respondError(c, "purchase_tokens", err)
		return
	}

	var req purchaseRequest
	if err := h.bindValidated(c, purchaseSchema, &req); err != nil {
		h.respondError(c, "purchase_tokens", err)
		return
	}

	balance, err := h.ledger.Credit(c.Request.Context(), companyID, req.Amount, fmt.Sprintf("token pack of %d", req.Amount))
	if err != nil {
		h.respondError(c, "purchase_tokens", err)
		return
	}

	if userID, exists := c.Get(auth.ContextUserID); exists {
		if uid, ok := userID.(int64); ok && h.emitter != nil {
			h.emitter.Emit(c.Request.Context(), uid, models.Notification{
				Title:    "Tokens acreditados",
				Message:  fmt.Sprintf("Se han añadido %d tokens a tu cuenta", req.Amount),
				Type:     models.NotificationTokensPurchased,
				Priority: models.PriorityLow,
				Metadata: map[string]interface{}{"companyId": companyID, "amount": req.Amount},
			})
		}
	}

	h.recordSuccess(c, "purchase_tokens", started)
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// bindValidated decodes the body once, checks it against the schema, then
// binds it onto the typed request.
func (h *Handlers) bindValidated(c *gin.Context, schema map[string]interface{}, out interface{}) error {
	var raw map[string]interface{}
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		return apperrors.NewValidationFailedError("malformed JSON body")
	}
	if err := validation.Validate(schema, raw); err != nil {
		return err
	}
	if err := c.ShouldBindBodyWith(out, binding.JSON); err != nil {
		return apperrors.NewValidationFailedError(err.Error())
	}
	return nil
}

func (h *Handlers) respondError(c *gin.Context, operation string, err error) {
	status, body := apperrors.ToResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"operation": operation,
			"status":    status,
			"error":     err,
		})
	}
	if h.obs != nil {
		h.obs.RecordRequest(c.Request.Context(), operation, "failed")
	}
	c.JSON(status, body)
}

func (h *Handlers) recordSuccess(c *gin.Context, operation string, started time.Time) {
	if h.obs == nil {
		return
	}
	h.obs.RecordRequest(c.Request.Context(), operation, "success")
	h.obs.RecordRequestDuration(c.Request.Context(), time.Since(started), operation)
}
