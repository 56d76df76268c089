package models

import (
	"time"
)

// ConceptMastery is one (student, concept) row maintained by the external
// scoring process after each attempt. MasteryScore is always within [0,100];
// NextReviewDate is nil until the scorer has scheduled a review.
type ConceptMastery struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	StudentID   string `json:"student_id" gorm:"not null;size:255;uniqueIndex:idx_mastery_student_concept,priority:1"`
	ConceptName string `json:"concept_name" gorm:"not null;size:200;uniqueIndex:idx_mastery_student_concept,priority:2;index"`

	MasteryScore   int        `json:"mastery_score" gorm:"not null" validate:"min=0,max=100"`
	NextReviewDate *time.Time `json:"next_review_date" gorm:"index"`

	UpdatedAt time.Time `json:"updated_at"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
}

func (ConceptMastery) TableName() string {
	return "concept_mastery"
}

// IsOverdue reports whether the next review date is strictly before the
// start of today in UTC.
func (m *ConceptMastery) IsOverdue(now time.Time) bool {
	if m.NextReviewDate == nil {
		return false
	}
	today := now.UTC().Truncate(24 * time.Hour)
	return m.NextReviewDate.UTC().Truncate(24 * time.Hour).Before(today)
}
