package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
)

// InactivityNever is the sentinel for students with no attempts at all. It
// is a very large day count rather than 0 so "never started" always
// classifies as more severe than any finite inactivity span.
const InactivityNever = math.MaxInt32

const day = 24 * time.Hour

// PerformanceService answers per-student time-windowed questions: trailing
// weekly average, week-over-week delta and days of inactivity. Every method
// takes "now" explicitly so results are deterministic under test.
type PerformanceService interface {
	GetWeeklyPerformance(ctx context.Context, studentID string, now time.Time) (*WeeklyPerformance, error)
	GetScoreDelta(ctx context.Context, studentID string, now time.Time) (*int, error)
	GetInactivityDays(ctx context.Context, studentID string, now time.Time) (int, error)
	GetStudentSnapshot(ctx context.Context, studentID string, now time.Time) (*StudentSnapshot, error)
}

type performanceService struct {
	repo   repositories.TelemetryRepository
	logger *slog.Logger
}

func NewPerformanceService(repo repositories.TelemetryRepository, logger *slog.Logger) PerformanceService {
	return &performanceService{
		repo:   repo,
		logger: logger,
	}
}

// ===== DATA STRUCTURES =====

type WeeklyPerformance struct {
	AvgScore float64 `json:"avg_score"`
	Count    int     `json:"count"`
}

// StudentSnapshot is the drill-down view of one student's recent signals.
// ScoreDelta is nil when either comparison window has no attempts; a nil
// delta is "no data", not a zero-point change.
type StudentSnapshot struct {
	StudentID      string    `json:"student_id"`
	StudentName    string    `json:"student_name"`
	WeeklyAvg      float64   `json:"weekly_avg"`
	WeeklyCount    int       `json:"weekly_count"`
	ScoreDelta     *int      `json:"score_delta"`
	InactivityDays int       `json:"inactivity_days"`
	NeverAttempted bool      `json:"never_attempted"`
	CurrentStreak  int       `json:"current_streak"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// ===== SERVICE METHODS =====

func (s *performanceService) GetWeeklyPerformance(ctx context.Context, studentID string, now time.Time) (*WeeklyPerformance, error) {
	attempts, err := s.repo.GetStudentAttemptsSince(ctx, studentID, now.Add(-7*day))
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	avg, count := windowAverage(attempts, now.Add(-7*day), now.Add(day))
	return &WeeklyPerformance{AvgScore: avg, Count: count}, nil
}

func (s *performanceService) GetScoreDelta(ctx context.Context, studentID string, now time.Time) (*int, error) {
	attempts, err := s.repo.GetStudentAttemptsSince(ctx, studentID, now.Add(-14*day))
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}
	return scoreDelta(attempts, now), nil
}

func (s *performanceService) GetInactivityDays(ctx context.Context, studentID string, now time.Time) (int, error) {
	last, err := s.repo.GetLastAttempt(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("failed to get last attempt: %w", err)
	}
	if last == nil {
		return InactivityNever, nil
	}
	return inactivityDays(last.QuizDate, now), nil
}

func (s *performanceService) GetStudentSnapshot(ctx context.Context, studentID string, now time.Time) (*StudentSnapshot, error) {
	student, err := s.repo.GetStudent(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if student == nil {
		return nil, ErrStudentNotFound
	}

	attempts, err := s.repo.GetStudentAttemptsSince(ctx, studentID, now.Add(-14*day))
	if err != nil {
		return nil, fmt.Errorf("failed to get attempts: %w", err)
	}

	last, err := s.repo.GetLastAttempt(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last attempt: %w", err)
	}

	avg, count := windowAverage(attempts, now.Add(-7*day), now.Add(day))

	snapshot := &StudentSnapshot{
		StudentID:      studentID,
		StudentName:    student.FullName,
		WeeklyAvg:      avg,
		WeeklyCount:    count,
		ScoreDelta:     scoreDelta(attempts, now),
		InactivityDays: InactivityNever,
		NeverAttempted: last == nil,
		GeneratedAt:    now,
	}
	if last != nil {
		snapshot.InactivityDays = inactivityDays(last.QuizDate, now)
		snapshot.CurrentStreak = last.StreakCount
	}
	return snapshot, nil
}

// ===== WINDOW COMPUTATIONS =====
//
// These are shared with the alert generator, which runs them over in-memory
// per-student groupings loaded in one batch.

// windowAverage returns the mean score and attempt count for attempts with
// from <= quiz_date < to. An empty window is exactly (0, 0), never NaN.
func windowAverage(attempts []*models.QuizAttempt, from, to time.Time) (float64, int) {
	sum, count := 0, 0
	for _, attempt := range attempts {
		if attempt.QuizDate.Before(from) || !attempt.QuizDate.Before(to) {
			continue
		}
		sum += attempt.Score
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return float64(sum) / float64(count), count
}

// scoreDelta returns this week's average minus last week's, each rounded to
// the nearest integer first, or nil when either window is empty. Callers
// must not conflate nil (no data) with a zero-point change.
func scoreDelta(attempts []*models.QuizAttempt, now time.Time) *int {
	thisAvg, thisCount := windowAverage(attempts, now.Add(-7*day), now.Add(day))
	lastAvg, lastCount := windowAverage(attempts, now.Add(-14*day), now.Add(-7*day))
	if thisCount == 0 || lastCount == 0 {
		return nil
	}
	delta := int(math.Round(thisAvg)) - int(math.Round(lastAvg))
	return &delta
}

// inactivityDays returns ceil(now - lastQuiz) in days, clamped at 0.
func inactivityDays(lastQuiz time.Time, now time.Time) int {
	elapsed := now.Sub(lastQuiz)
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil(elapsed.Hours() / 24))
}
