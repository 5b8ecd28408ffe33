// internal/cvaccess/store.go
package cvaccess

import (
	"context"
	"database/sql"

	apperrors "placement-backend/internal/common/errors"
	"placement-backend/internal/models"
)

// Store loads the student rows the gateway needs and applies the best-effort
// application bookkeeping that follows a successful access.
type Store interface {
	GetStudent(ctx context.Context, studentID int64) (*models.Student, error)
	GetStudentCV(ctx context.Context, studentID int64) (*models.StudentCV, error)
	MarkApplicationsReviewed(ctx context.Context, companyID, studentID int64) (int64, error)
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetStudent(ctx context.Context, studentID int64) (*models.Student, error) {
	var student models.Student
	var grade, course sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, grade, course, car, active, profamily_id, verification_status
		FROM students
		WHERE id = $1`, studentID).Scan(
		&student.ID,
		&student.UserID,
		&student.Name,
		&grade,
		&course,
		&student.Car,
		&student.Active,
		&student.ProfamilyID,
		&student.VerificationStatus,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_student", err)
	}
	student.Grade = grade.String
	student.Course = course.String
	return &student, nil
}

// GetStudentCV assembles the full contact/CV payload: identity and contact
// data from the user row, then skills and academics.
func (s *PostgresStore) GetStudentCV(ctx context.Context, studentID int64) (*models.StudentCV, error) {
	cv := &models.StudentCV{StudentID: studentID}

	var phone, description sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT s.name, u.email, u.phone, s.description
		FROM students s
		JOIN users u ON u.id = s.user_id
		WHERE s.id = $1`, studentID).Scan(&cv.Name, &cv.Email, &phone, &description)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError("student", studentID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("get_student_cv", err)
	}
	cv.Phone = phone.String
	cv.Description = description.String

	skills, err := s.studentSkills(ctx, studentID)
	if err != nil {
		return nil, err
	}
	cv.Skills = skills

	academics, err := s.studentAcademics(ctx, studentID)
	if err != nil {
		return nil, err
	}
	cv.Academics = academics

	return cv, nil
}

// MarkApplicationsReviewed moves this student's pending applications to the
// company's offers into "reviewed". Returns the number of rows touched.
func (s *PostgresStore) MarkApplicationsReviewed(ctx context.Context, companyID, studentID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, updated_at = NOW()
		WHERE student_id = $2
		  AND status = $3
		  AND offer_id IN (SELECT id FROM offers WHERE company_id = $4)`,
		models.ApplicationStatusReviewed, studentID, models.ApplicationStatusPending, companyID)
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark_applications_reviewed", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) studentSkills(ctx context.Context, studentID int64) ([]models.CVSkill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT skill_name, proficiency
		FROM cv_skills
		WHERE student_id = $1
		ORDER BY skill_name`, studentID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("student_skills", err)
	}
	defer rows.Close()

	var skills []models.CVSkill
	for rows.Next() {
		var skill models.CVSkill
		if err := rows.Scan(&skill.Name, &skill.Level); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("student_skills", err)
		}
		skills = append(skills, skill)
	}
	return skills, rows.Err()
}

func (s *PostgresStore) studentAcademics(ctx context.Context, studentID int64) ([]models.Academic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT degree, institute, finished_at
		FROM cv_academics
		WHERE student_id = $1
		ORDER BY finished_at DESC`, studentID)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("student_academics", err)
	}
	defer rows.Close()

	var academics []models.Academic
	for rows.Next() {
		var academic models.Academic
		var institute, finishedAt sql.NullString
		if err := rows.Scan(&academic.Degree, &institute, &finishedAt); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("student_academics", err)
		}
		academic.Institute = institute.String
		academic.FinishedAt = finishedAt.String
		academics = append(academics, academic)
	}
	return academics, rows.Err()
}
