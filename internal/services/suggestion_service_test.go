package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/events"
	"github.com/brightclass/insight-service/internal/models"
)

func classAttempt(studentID string, classID uint, score int, quizDate time.Time) *models.QuizAttempt {
	a := attempt(studentID, score, quizDate)
	a.ClassID = classID
	return a
}

func attemptWithAnswers(studentID string, quizDate time.Time, breakdowns []models.AnswerBreakdown) *models.QuizAttempt {
	a := attempt(studentID, 70, quizDate)
	payload, _ := json.Marshal(breakdowns)
	a.Answers = payload
	return a
}

func TestBuildSuggestions_WeakestConcept(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()

	// Tenses averages 30 across 6 students, Vocabulary 85 across 4. The
	// first rule must target Tenses with the full cohort count.
	var mastery []*models.ConceptMastery
	for _, id := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		mastery = append(mastery, masteryRecord(id, "Tenses", 30, nil))
	}
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		mastery = append(mastery, masteryRecord(id, "Vocabulary", 85, nil))
	}

	suggestions := BuildSuggestions(nil, nil, mastery, nil, now, thresholds)

	assert.Len(t, suggestions, 1)
	s := suggestions[0]
	assert.Equal(t, 1, s.Priority)
	assert.Equal(t, "review_concept", s.ActionType)
	assert.Contains(t, s.Title, "Tenses")
	assert.Equal(t, "Tenses", s.SupportingData["concept_name"])
	assert.Equal(t, 6, s.SupportingData["student_count"])
	assert.Equal(t, float64(30), s.SupportingData["avg_mastery"])
}

func TestBuildSuggestions_OverdueBacklog(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()

	students := []*models.Student{
		{ID: "s1", FullName: "Ana Petrova"},
		{ID: "s2", FullName: "Boris Iliev"},
	}
	mastery := []*models.ConceptMastery{
		masteryRecord("s1", "Tenses", 50, timePtr(now.Add(-3*day))),
		masteryRecord("s1", "Articles", 50, timePtr(now.Add(-1*day))),
		masteryRecord("s2", "Tenses", 50, timePtr(now.Add(-2*day))),
		masteryRecord("s2", "Plurals", 50, timePtr(now.Add(5*day))),
	}

	suggestions := BuildSuggestions(students, nil, mastery, nil, now, thresholds)

	// Rule 1 fires too (a weakest concept always exists when mastery rows
	// do), so the backlog suggestion takes priority 2.
	assert.Len(t, suggestions, 2)
	s := suggestions[1]
	assert.Equal(t, 2, s.Priority)
	assert.Equal(t, "send_reminders", s.ActionType)
	assert.Equal(t, 3, s.SupportingData["overdue_count"])
	assert.Equal(t, 2, s.SupportingData["student_count"])
	assert.Contains(t, s.Description, "Ana Petrova")
}

func TestBuildSuggestions_ClassGap(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()
	classes := []*models.Class{
		{ID: 1, Name: "Morning A"},
		{ID: 2, Name: "Evening B"},
	}

	t.Run("wide gap flags the weakest class", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			classAttempt("s1", 1, 85, now.Add(-2*day)),
			classAttempt("s2", 1, 90, now.Add(-3*day)),
			classAttempt("s3", 2, 55, now.Add(-2*day)),
			classAttempt("s4", 2, 60, now.Add(-4*day)),
		}

		suggestions := BuildSuggestions(nil, attempts, nil, classes, now, thresholds)

		assert.Len(t, suggestions, 1)
		s := suggestions[0]
		assert.Equal(t, "support_class", s.ActionType)
		assert.Contains(t, s.Title, "Evening B")
		assert.Equal(t, uint(2), s.SupportingData["class_id"])
	})

	t.Run("gap at the threshold does not fire", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			classAttempt("s1", 1, 80, now.Add(-2*day)),
			classAttempt("s2", 2, 65, now.Add(-2*day)),
		}

		suggestions := BuildSuggestions(nil, attempts, nil, classes, now, thresholds)

		assert.Empty(t, suggestions)
	})

	t.Run("a single class never fires", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			classAttempt("s1", 1, 95, now.Add(-2*day)),
			classAttempt("s2", 1, 20, now.Add(-2*day)),
		}

		suggestions := BuildSuggestions(nil, attempts, nil, classes, now, thresholds)

		assert.Empty(t, suggestions)
	})
}

func TestBuildSuggestions_QuestionType(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()

	t.Run("lowest accuracy below cutoff fires", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			attemptWithAnswers("s1", now.Add(-2*day), []models.AnswerBreakdown{
				{QuestionType: models.QuestionListening, IsCorrect: false},
				{QuestionType: models.QuestionListening, IsCorrect: false},
				{QuestionType: models.QuestionListening, IsCorrect: true},
				{QuestionType: models.QuestionMultipleChoice, IsCorrect: true},
				{QuestionType: models.QuestionMultipleChoice, IsCorrect: true},
			}),
		}

		suggestions := BuildSuggestions(nil, attempts, nil, nil, now, thresholds)

		assert.Len(t, suggestions, 1)
		s := suggestions[0]
		assert.Equal(t, "practice_question_type", s.ActionType)
		assert.Equal(t, string(models.QuestionListening), s.SupportingData["question_type"])
	})

	t.Run("all types above cutoff stay quiet", func(t *testing.T) {
		attempts := []*models.QuizAttempt{
			attemptWithAnswers("s1", now.Add(-2*day), []models.AnswerBreakdown{
				{QuestionType: models.QuestionListening, IsCorrect: true},
				{QuestionType: models.QuestionMultipleChoice, IsCorrect: true},
			}),
		}

		suggestions := BuildSuggestions(nil, attempts, nil, nil, now, thresholds)

		assert.Empty(t, suggestions)
	})

	t.Run("malformed answers are skipped", func(t *testing.T) {
		bad := attempt("s1", 70, now.Add(-2*day))
		bad.Answers = []byte(`{"not":"an array"`)

		suggestions := BuildSuggestions(nil, []*models.QuizAttempt{bad}, nil, nil, now, thresholds)

		assert.Empty(t, suggestions)
	})
}

func TestBuildSuggestions_PrioritiesAreSequential(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()

	students := []*models.Student{{ID: "s1", FullName: "Ana Petrova"}}
	classes := []*models.Class{
		{ID: 1, Name: "Morning A"},
		{ID: 2, Name: "Evening B"},
	}
	mastery := []*models.ConceptMastery{
		masteryRecord("s1", "Tenses", 25, timePtr(now.Add(-2*day))),
	}
	attempts := []*models.QuizAttempt{
		classAttempt("s1", 1, 90, now.Add(-2*day)),
		classAttempt("s1", 2, 50, now.Add(-3*day)),
		attemptWithAnswers("s1", now.Add(-4*day), []models.AnswerBreakdown{
			{QuestionType: models.QuestionFillInBlank, IsCorrect: false},
		}),
	}

	suggestions := BuildSuggestions(students, attempts, mastery, classes, now, thresholds)

	assert.Len(t, suggestions, 4)
	for i, s := range suggestions {
		assert.Equal(t, i+1, s.Priority)
	}
	assert.Equal(t, "review_concept", suggestions[0].ActionType)
	assert.Equal(t, "send_reminders", suggestions[1].ActionType)
	assert.Equal(t, "support_class", suggestions[2].ActionType)
	assert.Equal(t, "practice_question_type", suggestions[3].ActionType)
}

func TestSuggestionService_GetSuggestions(t *testing.T) {
	now := time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)
	thresholds := config.DefaultThresholds()

	t.Run("requires an institution", func(t *testing.T) {
		service := NewSuggestionService(&MockTelemetryRepository{}, testLogger(), thresholds, nil, nil, 0)

		suggestions, err := service.GetSuggestions(context.Background(), "", now, 0)

		assert.Nil(t, suggestions)
		assert.ErrorIs(t, err, ErrInstitutionRequired)
	})

	t.Run("caps the list and publishes the weak concept", func(t *testing.T) {
		mockRepo := &MockTelemetryRepository{}
		mockRepo.On("GetActiveStudents", mock.Anything, "inst-1").
			Return([]*models.Student{{ID: "s1", FullName: "Ana Petrova"}}, nil)
		mockRepo.On("GetAttemptsSince", mock.Anything, "inst-1", mock.Anything).
			Return([]*models.QuizAttempt{}, nil)
		mockRepo.On("GetMasteryRecords", mock.Anything, "inst-1").
			Return([]*models.ConceptMastery{
				masteryRecord("s1", "Tenses", 25, timePtr(now.Add(-2*day))),
			}, nil)
		mockRepo.On("GetClasses", mock.Anything, "inst-1").
			Return([]*models.Class{}, nil)

		publisher := events.NewMockEventPublisher(testLogger())
		service := NewSuggestionService(mockRepo, testLogger(), thresholds, nil, publisher, 0)

		suggestions, err := service.GetSuggestions(context.Background(), "inst-1", now, 1)

		assert.NoError(t, err)
		assert.Len(t, suggestions, 1)
		assert.Equal(t, "review_concept", suggestions[0].ActionType)

		published := publisher.GetPublishedEvents()
		assert.Len(t, published, 1)
		assert.Equal(t, events.EventWeakConceptDetected, published[0].Type)
		payload, ok := published[0].Data.(events.WeakConceptDetectedEvent)
		assert.True(t, ok)
		assert.Equal(t, "Tenses", payload.ConceptName)
		assert.Equal(t, float64(25), payload.AvgMastery)
	})
}
