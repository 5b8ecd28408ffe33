// internal/models/reveal.go
package models

import "time"

// Reveal provenance tags.
const (
	RevealTypeIntelligentSearch = "intelligent_search"
	RevealTypeDirectContact     = "direct_contact"
)

// RevealRecord is the durable proof that a company has permanently unlocked
// a student's CV. At most one record exists per (company, student) pair; its
// existence is the sole gate controlling whether subsequent access is free.
type RevealRecord struct {
	ID         int64     `json:"id"`
	CompanyID  int64     `json:"companyId"`
	StudentID  int64     `json:"studentId"`
	TokensUsed int       `json:"tokensUsed"`
	RevealType string    `json:"revealType"`
	RevealedAt time.Time `json:"revealedAt"`
}
