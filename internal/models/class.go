package models

import (
	"time"

	"gorm.io/gorm"
)

type EnrollmentStatus string

const (
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentDropped EnrollmentStatus = "dropped"
)

type Class struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	InstitutionID string `json:"institution_id" gorm:"not null;size:255;index"`
	Name          string `json:"name" gorm:"not null;size:200"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Enrollments []ClassEnrollment `json:"enrollments,omitempty" gorm:"foreignKey:ClassID"`
}

// ClassEnrollment links a student to a class. Only active enrollments count
// toward class denominators ("missed quizzes", class averages).
type ClassEnrollment struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	StudentID string           `json:"student_id" gorm:"not null;size:255;index;uniqueIndex:idx_enrollment_student_class,priority:1"`
	ClassID   uint             `json:"class_id" gorm:"not null;index;uniqueIndex:idx_enrollment_student_class,priority:2"`
	Status    EnrollmentStatus `json:"status" gorm:"default:active;size:20;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Student Student `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Class   Class   `json:"class,omitempty" gorm:"foreignKey:ClassID"`
}

func (Class) TableName() string {
	return "classes"
}

func (ClassEnrollment) TableName() string {
	return "class_enrollments"
}
