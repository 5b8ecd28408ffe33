// internal/models/student.go
package models

// Academic verification statuses.
const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
	VerificationRejected   = "rejected"
)

// Student is the candidate row read by search and the CV access gateway.
type Student struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"userId"`
	Name               string `json:"name"`
	Grade              string `json:"grade,omitempty"`
	Course             string `json:"course,omitempty"`
	Car                bool   `json:"car"`
	Active             bool   `json:"active"`
	ProfamilyID        *int64 `json:"profamilyId,omitempty"`
	VerificationStatus string `json:"verificationStatus"` // "unverified", "pending", "verified", "rejected"
}

// StudentCV is the full contact/CV payload released only through the access
// gateway once the reveal gate has been passed.
type StudentCV struct {
	StudentID   int64      `json:"studentId"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone,omitempty"`
	Description string     `json:"description,omitempty"`
	Skills      []CVSkill  `json:"skills"`
	Academics   []Academic `json:"academics,omitempty"`
}

// CVSkill is one skill association on a student's CV.
type CVSkill struct {
	Name  string `json:"name"`
	Level string `json:"level"` // "bajo", "medio", "alto"
}

// Academic is one academic record on a student's CV.
type Academic struct {
	Degree     string `json:"degree"`
	Institute  string `json:"institute,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
}
