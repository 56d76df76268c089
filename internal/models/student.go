package models

import (
	"time"

	"gorm.io/gorm"
)

// Student is a read-only row from the platform's user store. The insight
// engine never creates or mutates students.
type Student struct {
	ID            string `json:"id" gorm:"primaryKey;size:255"`
	InstitutionID string `json:"institution_id" gorm:"not null;size:255;index"`
	FullName      string `json:"full_name" gorm:"not null;size:100"`
	Email         string `json:"email" gorm:"uniqueIndex;not null;size:255"`

	IsActive bool `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Student) TableName() string {
	return "students"
}
