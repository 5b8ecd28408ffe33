// internal/search/repository.go
package search

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lib/pq"

	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/models"
)

// Filters are the structural candidate filters of an ad hoc search.
type Filters struct {
	ProfamilyID *int64 `json:"profamilyId,omitempty"`
	Grade       string `json:"grade,omitempty"`
	Car         *bool  `json:"car,omitempty"`
}

// Store is the persistence surface the orchestrator depends on. Injected so
// tests can swap the Postgres implementation.
type Store interface {
	GetOffer(ctx context.Context, offerID int64) (*models.Offer, error)
	AppliedStudentIDs(ctx context.Context, offerID int64) (map[int64]bool, error)
	AppliedStudentIDsForCompany(ctx context.Context, companyID int64) (map[int64]bool, error)
	ActiveStudents(ctx context.Context, filters Filters, limit int) ([]models.Student, error)
	StudentSkills(ctx context.Context, studentID int64) ([]models.CVSkill, error)
}

// PostgresStore implements Store over the relational schema.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetOffer(ctx context.Context, offerID int64) (*models.Offer, error) {
	var offer models.Offer
	var profamilyIDs pq.Int64Array
	err := s.db.QueryRowContext(ctx, `
		SELECT id, company_id, title, active, profamily_ids
		FROM offers
		WHERE id = $1`, offerID).Scan(
		&offer.ID, &offer.CompanyID, &offer.Title, &offer.Active, &profamilyIDs)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("offer", offerID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_offer", err)
	}
	offer.ProfamilyIDs = []int64(profamilyIDs)

	rows, err := s.db.QueryContext(ctx, `
		SELECT skill_name, required_level
		FROM offer_skills
		WHERE offer_id = $1
		ORDER BY skill_name`, offerID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_offer_skills", err)
	}
	defer rows.Close()

	for rows.Next() {
		var skill models.RequiredSkill
		if err := rows.Scan(&skill.Name, &skill.Level); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_offer_skill", err)
		}
		offer.Skills = append(offer.Skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate_offer_skills", err)
	}

	return &offer, nil
}

func (s *PostgresStore) AppliedStudentIDs(ctx context.Context, offerID int64) (map[int64]bool, error) {
	return s.scanIDSet(ctx, `
		SELECT student_id FROM applications WHERE offer_id = $1`, offerID)
}

func (s *PostgresStore) AppliedStudentIDsForCompany(ctx context.Context, companyID int64) (map[int64]bool, error) {
	return s.scanIDSet(ctx, `
		SELECT DISTINCT a.student_id
		FROM applications a
		JOIN offers o ON o.id = a.offer_id
		WHERE o.company_id = $1`, companyID)
}

func (s *PostgresStore) scanIDSet(ctx context.Context, query string, arg int64) (map[int64]bool, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("applied_students", err)
	}
	defer rows.Close()

	ids := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_applied_student", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate_applied_students", err)
	}
	return ids, nil
}

func (s *PostgresStore) ActiveStudents(ctx context.Context, filters Filters, limit int) ([]models.Student, error) {
	query := `
		SELECT id, user_id, name, grade, course, car, active, profamily_id, verification_status
		FROM students
		WHERE active = TRUE`
	args := []interface{}{}

	if filters.ProfamilyID != nil {
		args = append(args, *filters.ProfamilyID)
		query += ` AND profamily_id = $` + strconv.Itoa(len(args))
	}
	if filters.Grade != "" {
		args = append(args, filters.Grade)
		query += ` AND grade = $` + strconv.Itoa(len(args))
	}
	if filters.Car != nil {
		args = append(args, *filters.Car)
		query += ` AND car = $` + strconv.Itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY id LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("active_students", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var st models.Student
		var grade, course sql.NullString
		var profamilyID sql.NullInt64
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &grade, &course, &st.Car, &st.Active, &profamilyID, &st.VerificationStatus); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_student", err)
		}
		st.Grade = grade.String
		st.Course = course.String
		if profamilyID.Valid {
			id := profamilyID.Int64
			st.ProfamilyID = &id
		}
		students = append(students, st)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate_students", err)
	}
	return students, nil
}

func (s *PostgresStore) StudentSkills(ctx context.Context, studentID int64) ([]models.CVSkill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT skill_name, proficiency
		FROM cv_skills
		WHERE student_id = $1`, studentID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("student_skills", err)
	}
	defer rows.Close()

	var skills []models.CVSkill
	for rows.Next() {
		var skill models.CVSkill
		if err := rows.Scan(&skill.Name, &skill.Level); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan_student_skill", err)
		}
		skills = append(skills, skill)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate_student_skills", err)
	}
	return skills, nil
}
