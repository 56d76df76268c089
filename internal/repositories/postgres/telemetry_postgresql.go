package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
	"gorm.io/gorm"
)

type TelemetryPostgreSQL struct {
	db *gorm.DB
}

func NewTelemetryPostgreSQL(db *gorm.DB) repositories.TelemetryRepository {
	return &TelemetryPostgreSQL{db: db}
}

func (t *TelemetryPostgreSQL) GetActiveStudents(ctx context.Context, institutionID string) ([]*models.Student, error) {
	var students []*models.Student
	if err := t.db.WithContext(ctx).
		Where("institution_id = ? AND is_active = ?", institutionID, true).
		Order("full_name").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

func (t *TelemetryPostgreSQL) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	var student models.Student
	if err := t.db.WithContext(ctx).First(&student, "id = ?", studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}

func (t *TelemetryPostgreSQL) GetActiveEnrollments(ctx context.Context, institutionID string) ([]*models.ClassEnrollment, error) {
	var enrollments []*models.ClassEnrollment
	if err := t.db.WithContext(ctx).
		Joins("JOIN students ON students.id = class_enrollments.student_id").
		Where("students.institution_id = ? AND class_enrollments.status = ?", institutionID, models.EnrollmentActive).
		Find(&enrollments).Error; err != nil {
		return nil, err
	}
	return enrollments, nil
}

func (t *TelemetryPostgreSQL) GetClasses(ctx context.Context, institutionID string) ([]*models.Class, error) {
	var classes []*models.Class
	if err := t.db.WithContext(ctx).
		Where("institution_id = ?", institutionID).
		Order("name").
		Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (t *TelemetryPostgreSQL) GetAttemptsSince(ctx context.Context, institutionID string, since time.Time) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	if err := t.db.WithContext(ctx).
		Joins("JOIN students ON students.id = quiz_attempts.student_id").
		Where("students.institution_id = ? AND quiz_attempts.quiz_date >= ?", institutionID, since).
		Order("quiz_attempts.quiz_date DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

func (t *TelemetryPostgreSQL) GetStudentAttemptsSince(ctx context.Context, studentID string, since time.Time) ([]*models.QuizAttempt, error) {
	var attempts []*models.QuizAttempt
	if err := t.db.WithContext(ctx).
		Where("student_id = ? AND quiz_date >= ?", studentID, since).
		Order("quiz_date DESC").
		Find(&attempts).Error; err != nil {
		return nil, err
	}
	return attempts, nil
}

// GetStudentActivity returns one row per student that has at least one
// attempt: the most recent attempt date and the streak recorded on it.
func (t *TelemetryPostgreSQL) GetStudentActivity(ctx context.Context, institutionID string) ([]repositories.StudentActivity, error) {
	var activity []repositories.StudentActivity
	if err := t.db.WithContext(ctx).
		Raw(`SELECT DISTINCT ON (quiz_attempts.student_id)
				quiz_attempts.student_id,
				quiz_attempts.quiz_date AS last_quiz_date,
				quiz_attempts.streak_count AS latest_streak
			FROM quiz_attempts
			JOIN students ON students.id = quiz_attempts.student_id
			WHERE students.institution_id = ?
			ORDER BY quiz_attempts.student_id, quiz_attempts.quiz_date DESC`, institutionID).
		Scan(&activity).Error; err != nil {
		return nil, err
	}
	return activity, nil
}

func (t *TelemetryPostgreSQL) GetLastAttempt(ctx context.Context, studentID string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := t.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("quiz_date DESC").
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (t *TelemetryPostgreSQL) GetMasteryRecords(ctx context.Context, institutionID string) ([]*models.ConceptMastery, error) {
	var records []*models.ConceptMastery
	if err := t.db.WithContext(ctx).
		Joins("JOIN students ON students.id = concept_mastery.student_id").
		Where("students.institution_id = ? AND students.is_active = ?", institutionID, true).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (t *TelemetryPostgreSQL) GetStudentMastery(ctx context.Context, studentID string) ([]*models.ConceptMastery, error) {
	var records []*models.ConceptMastery
	if err := t.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("concept_name").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
