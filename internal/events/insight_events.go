package events

import (
	"time"
)

// EventType represents different types of insight events
type EventType string

const (
	// Published after an alerts computation that produced at least one
	// critical alert; the notification service fans this out to teachers.
	EventAlertsComputed EventType = "insight.alerts.computed"

	// Published when the suggestion ranker surfaces a weak concept so the
	// content team can queue remedial material.
	EventWeakConceptDetected EventType = "insight.weak_concept.detected"
)

// InsightEvent is the base envelope for all insight events
type InsightEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AlertsComputedEvent is the digest payload for a completed alerts run.
// Alerts themselves are never persisted, so downstream consumers get counts
// plus the students that need attention, not the full alert bodies.
type AlertsComputedEvent struct {
	InstitutionID      string    `json:"institution_id"`
	CriticalCount      int       `json:"critical_count"`
	WarningCount       int       `json:"warning_count"`
	PositiveCount      int       `json:"positive_count"`
	CriticalStudentIDs []string  `json:"critical_student_ids"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// WeakConceptDetectedEvent flags an institution-wide weak concept.
type WeakConceptDetectedEvent struct {
	InstitutionID string  `json:"institution_id"`
	ConceptName   string  `json:"concept_name"`
	AvgMastery    float64 `json:"avg_mastery"`
	StudentCount  int     `json:"student_count"`
}
