// internal/models/token.go
package models

import "time"

// Token transaction kinds.
const (
	TransactionKindPurchase = "purchase"
	TransactionKindUsage    = "usage"
)

// Semantic action labels consumed by the token ledger's cost table.
const (
	ActionViewCV         = "view_cv"
	ActionContactStudent = "contact_student"
)

// TokenAccount is the per-company token balance row. Invariant:
// PurchasedTotal - UsedTotal == Balance after every ledger mutation.
type TokenAccount struct {
	ID             int64     `json:"id"`
	CompanyID      int64     `json:"companyId"`
	Balance        int       `json:"balance"`
	UsedTotal      int       `json:"usedTotal"`
	PurchasedTotal int       `json:"purchasedTotal"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TokenTransaction is an append-only ledger entry. Never updated or deleted,
// and never read back into control-flow decisions.
type TokenTransaction struct {
	ID           int64     `json:"id"`
	Reference    string    `json:"reference"` // uuid, for support lookups
	CompanyID    int64     `json:"companyId"`
	StudentID    *int64    `json:"studentId,omitempty"` // subject of the action, if any
	Kind         string    `json:"kind"`                // "purchase" or "usage"
	Action       string    `json:"action"`              // "view_cv", "contact_student", "purchase", ...
	SignedAmount int       `json:"signedAmount"`        // negative for usage, positive for purchase
	Description  string    `json:"description,omitempty"`
	BalanceAfter int       `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TokenBalance is the read-only projection returned by the balance endpoint.
type TokenBalance struct {
	Available int `json:"balance"`
	Used      int `json:"used"`
	Total     int `json:"total"`
}
