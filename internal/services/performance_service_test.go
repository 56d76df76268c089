package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/brightclass/insight-service/internal/models"
)

func attempt(studentID string, score int, quizDate time.Time) *models.QuizAttempt {
	return &models.QuizAttempt{
		StudentID: studentID,
		Score:     score,
		QuizDate:  quizDate,
	}
}

func TestWindowAverage(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		attempts  []*models.QuizAttempt
		wantAvg   float64
		wantCount int
	}{
		{
			name:      "empty window is zero zero",
			attempts:  nil,
			wantAvg:   0,
			wantCount: 0,
		},
		{
			name: "averages attempts inside the window",
			attempts: []*models.QuizAttempt{
				attempt("s1", 50, now.Add(-2*day)),
				attempt("s1", 55, now.Add(-1*day)),
			},
			wantAvg:   52.5,
			wantCount: 2,
		},
		{
			name: "window start is inclusive",
			attempts: []*models.QuizAttempt{
				attempt("s1", 80, now.Add(-7*day)),
			},
			wantAvg:   80,
			wantCount: 1,
		},
		{
			name: "attempts before the window are excluded",
			attempts: []*models.QuizAttempt{
				attempt("s1", 80, now.Add(-8*day)),
				attempt("s1", 60, now.Add(-1*day)),
			},
			wantAvg:   60,
			wantCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, count := windowAverage(tt.attempts, now.Add(-7*day), now.Add(day))
			assert.Equal(t, tt.wantAvg, avg)
			assert.Equal(t, tt.wantCount, count)
		})
	}
}

func TestScoreDelta(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	t.Run("rounds each window average before subtracting", func(t *testing.T) {
		// This week averages 52.5 (rounds to 53), last week 80.
		attempts := []*models.QuizAttempt{
			attempt("s1", 50, now.Add(-2*day)),
			attempt("s1", 55, now.Add(-1*day)),
			attempt("s1", 80, now.Add(-10*day)),
		}

		delta := scoreDelta(attempts, now)

		assert.NotNil(t, delta)
		assert.Equal(t, -27, *delta)
	})

	t.Run("nil when this week is empty", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			attempt("s1", 80, now.Add(-10*day)),
		}
		assert.Nil(t, scoreDelta(attempts, now))
	})

	t.Run("nil when last week is empty", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			attempt("s1", 80, now.Add(-1*day)),
		}
		assert.Nil(t, scoreDelta(attempts, now))
	})

	t.Run("zero delta is not nil", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			attempt("s1", 70, now.Add(-1*day)),
			attempt("s1", 70, now.Add(-10*day)),
		}

		delta := scoreDelta(attempts, now)

		assert.NotNil(t, delta)
		assert.Equal(t, 0, *delta)
	})
}

func TestInactivityDays(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lastQuiz time.Time
		want     int
	}{
		{"same instant", now, 0},
		{"future attempt clamps to zero", now.Add(2 * time.Hour), 0},
		{"partial day rounds up", now.Add(-36 * time.Hour), 2},
		{"exact days", now.Add(-7 * day), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, inactivityDays(tt.lastQuiz, now))
		})
	}
}

func TestPerformanceService_GetInactivityDays(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	t.Run("never attempted returns the sentinel", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetLastAttempt", mock.Anything, "s1").Return(nil, nil)
		service := NewPerformanceService(mockRepo, testLogger())

		days, err := service.GetInactivityDays(context.Background(), "s1", now)

		assert.NoError(t, err)
		assert.Equal(t, InactivityNever, days)
	})

	t.Run("counts days since the last attempt", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetLastAttempt", mock.Anything, "s1").
			Return(attempt("s1", 70, now.Add(-9*day)), nil)
		service := NewPerformanceService(mockRepo, testLogger())

		days, err := service.GetInactivityDays(context.Background(), "s1", now)

		assert.NoError(t, err)
		assert.Equal(t, 9, days)
	})
}

func TestPerformanceService_GetStudentSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)

	t.Run("unknown student", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetStudent", mock.Anything, "missing").Return(nil, nil)
		service := NewPerformanceService(mockRepo, testLogger())

		snapshot, err := service.GetStudentSnapshot(context.Background(), "missing", now)

		assert.Nil(t, snapshot)
		assert.True(t, IsNotFound(err))
	})

	t.Run("student with recent attempts", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetStudent", mock.Anything, "s1").
			Return(&models.Student{ID: "s1", FullName: "Ana Petrova"}, nil)
		last := attempt("s1", 55, now.Add(-1*day))
		last.StreakCount = 4
		mockRepo.On("GetStudentAttemptsSince", mock.Anything, "s1", mock.Anything).
			Return([]*models.QuizAttempt{
				attempt("s1", 50, now.Add(-2*day)),
				last,
				attempt("s1", 80, now.Add(-10*day)),
			}, nil)
		mockRepo.On("GetLastAttempt", mock.Anything, "s1").Return(last, nil)
		service := NewPerformanceService(mockRepo, testLogger())

		snapshot, err := service.GetStudentSnapshot(context.Background(), "s1", now)

		assert.NoError(t, err)
		assert.Equal(t, "Ana Petrova", snapshot.StudentName)
		assert.Equal(t, 52.5, snapshot.WeeklyAvg)
		assert.Equal(t, 2, snapshot.WeeklyCount)
		assert.NotNil(t, snapshot.ScoreDelta)
		assert.Equal(t, -27, *snapshot.ScoreDelta)
		assert.Equal(t, 1, snapshot.InactivityDays)
		assert.False(t, snapshot.NeverAttempted)
		assert.Equal(t, 4, snapshot.CurrentStreak)
	})

	t.Run("student who never attempted", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetStudent", mock.Anything, "s2").
			Return(&models.Student{ID: "s2", FullName: "Boris Iliev"}, nil)
		mockRepo.On("GetStudentAttemptsSince", mock.Anything, "s2", mock.Anything).
			Return([]*models.QuizAttempt{}, nil)
		mockRepo.On("GetLastAttempt", mock.Anything, "s2").Return(nil, nil)
		service := NewPerformanceService(mockRepo, testLogger())

		snapshot, err := service.GetStudentSnapshot(context.Background(), "s2", now)

		assert.NoError(t, err)
		assert.True(t, snapshot.NeverAttempted)
		assert.Equal(t, InactivityNever, snapshot.InactivityDays)
		assert.Nil(t, snapshot.ScoreDelta)
		assert.Equal(t, 0, snapshot.WeeklyCount)
	})
}
