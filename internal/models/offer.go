// internal/models/offer.go
package models

// RequiredSkill is one normalized skill requirement: lower-cased name plus
// an ordinal level on the 1-3 scale. Search criteria and offers both express
// requirements as ordered lists of these; the object-or-array duck typing of
// older clients is rejected at the boundary.
type RequiredSkill struct {
	Name  string `json:"name"`
	Level int    `json:"level"`
}

// Offer is a company-posted internship/job posting.
type Offer struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"companyId"`
	Title        string          `json:"title"`
	Description  string          `json:"description,omitempty"`
	Active       bool            `json:"active"`
	ProfamilyIDs []int64         `json:"profamilyIds,omitempty"`
	Skills       []RequiredSkill `json:"skills,omitempty"`
}

// Application links a student to an offer they applied to.
type Application struct {
	ID        int64  `json:"id"`
	StudentID int64  `json:"studentId"`
	OfferID   int64  `json:"offerId"`
	CompanyID int64  `json:"companyId"`
	Status    string `json:"status"` // "pending", "reviewed", "accepted", "rejected"
	CreatedAt string `json:"createdAt"`
}

// Application statuses.
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusReviewed = "reviewed"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)
