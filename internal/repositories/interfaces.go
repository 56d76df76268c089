package repositories

import (
	"context"
	"time"

	"github.com/brightclass/insight-service/internal/models"
)

// TelemetryRepository is the read-only view of the telemetry store the
// insight engine computes from. Every method loads a whole scope in one
// query; services derive per-student and per-concept metrics from in-memory
// grouping maps instead of issuing one query per student.
type TelemetryRepository interface {
	// Students and enrollment
	GetActiveStudents(ctx context.Context, institutionID string) ([]*models.Student, error)
	GetStudent(ctx context.Context, studentID string) (*models.Student, error)
	GetActiveEnrollments(ctx context.Context, institutionID string) ([]*models.ClassEnrollment, error)
	GetClasses(ctx context.Context, institutionID string) ([]*models.Class, error)

	// Quiz attempts
	GetAttemptsSince(ctx context.Context, institutionID string, since time.Time) ([]*models.QuizAttempt, error)
	GetStudentAttemptsSince(ctx context.Context, studentID string, since time.Time) ([]*models.QuizAttempt, error)
	GetStudentActivity(ctx context.Context, institutionID string) ([]StudentActivity, error)
	GetLastAttempt(ctx context.Context, studentID string) (*models.QuizAttempt, error)

	// Concept mastery
	GetMasteryRecords(ctx context.Context, institutionID string) ([]*models.ConceptMastery, error)
	GetStudentMastery(ctx context.Context, studentID string) ([]*models.ConceptMastery, error)
}

// ===== SHARED AGGREGATE STRUCTS =====

// StudentActivity is one row of the latest-attempt aggregate: when each
// student last took a quiz and the streak recorded on that attempt.
// Students who never attempted are absent from the result.
type StudentActivity struct {
	StudentID    string    `json:"student_id"`
	LastQuizDate time.Time `json:"last_quiz_date"`
	LatestStreak int       `json:"latest_streak"`
}
