package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionListening      QuestionType = "listening"
	QuestionOpenEnded      QuestionType = "open_ended"
)

// AnswerBreakdown is one question's outcome inside an attempt, stored as a
// JSON array on the attempt row.
type AnswerBreakdown struct {
	QuestionType QuestionType `json:"question_type"`
	IsCorrect    bool         `json:"is_correct"`
}

// QuizAttempt is a completed quiz for one student. Rows are written once by
// the quiz pipeline; the insight engine only reads them.
type QuizAttempt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	StudentID string `json:"student_id" gorm:"not null;size:255;index:idx_attempt_student_date,priority:1"`
	ClassID   uint   `json:"class_id" gorm:"not null;index"`

	Score       int            `json:"score" gorm:"not null" validate:"min=0,max=100"`
	QuizDate    time.Time      `json:"quiz_date" gorm:"not null;index:idx_attempt_student_date,priority:2"`
	StreakCount int            `json:"streak_count" gorm:"default:0"`
	Answers     datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Class   Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// AnswerBreakdowns decodes the JSON answers column. A malformed or empty
// column yields an empty slice, never an error, so one bad row degrades a
// single metric instead of a whole response.
func (a *QuizAttempt) AnswerBreakdowns() []AnswerBreakdown {
	if len(a.Answers) == 0 {
		return nil
	}
	var breakdowns []AnswerBreakdown
	if err := json.Unmarshal(a.Answers, &breakdowns); err != nil {
		return nil
	}
	return breakdowns
}
