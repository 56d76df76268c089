package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnswerBreakdowns(t *testing.T) {
	t.Run("decodes a valid payload", func(t *testing.T) {
		a := &QuizAttempt{
			Answers: []byte(`[{"question_type":"listening","is_correct":true},{"question_type":"open_ended","is_correct":false}]`),
		}

		breakdowns := a.AnswerBreakdowns()

		assert.Len(t, breakdowns, 2)
		assert.Equal(t, QuestionListening, breakdowns[0].QuestionType)
		assert.True(t, breakdowns[0].IsCorrect)
		assert.Equal(t, QuestionOpenEnded, breakdowns[1].QuestionType)
		assert.False(t, breakdowns[1].IsCorrect)
	})

	t.Run("empty column yields nil", func(t *testing.T) {
		a := &QuizAttempt{}
		assert.Nil(t, a.AnswerBreakdowns())
	})

	t.Run("malformed column yields nil", func(t *testing.T) {
		a := &QuizAttempt{Answers: []byte(`{"question_type":`)}
		assert.Nil(t, a.AnswerBreakdowns())
	})
}

func TestConceptMastery_IsOverdue(t *testing.T) {
	now := time.Date(2026, 3, 16, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		nextReview *time.Time
		want       bool
	}{
		{"unscheduled is never overdue", nil, false},
		{"yesterday is overdue", ptr(time.Date(2026, 3, 15, 23, 0, 0, 0, time.UTC)), true},
		{"earlier today is not overdue", ptr(time.Date(2026, 3, 16, 1, 0, 0, 0, time.UTC)), false},
		{"tomorrow is not overdue", ptr(time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &ConceptMastery{NextReviewDate: tt.nextReview}
			assert.Equal(t, tt.want, m.IsOverdue(now))
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
