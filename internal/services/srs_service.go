package services

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
)

type SRSPriority string

const (
	SRSPriorityHigh   SRSPriority = "high"
	SRSPriorityMedium SRSPriority = "medium"
	SRSPriorityLow    SRSPriority = "low"
)

var srsPriorityRank = map[SRSPriority]int{
	SRSPriorityHigh:   3,
	SRSPriorityMedium: 2,
	SRSPriorityLow:    1,
}

// SRSPlanService groups concepts due for review into group-class teaching
// sessions and per-student personal sessions, tagged with a priority
// derived from how overdue each review is.
type SRSPlanService interface {
	GetTeachingPlan(ctx context.Context, institutionID string, classID *uint, now time.Time) (*SRSPlanResponse, error)
}

type srsPlanService struct {
	repo       repositories.TelemetryRepository
	logger     *slog.Logger
	thresholds config.Thresholds
}

func NewSRSPlanService(repo repositories.TelemetryRepository, logger *slog.Logger, thresholds config.Thresholds) SRSPlanService {
	return &srsPlanService{
		repo:       repo,
		logger:     logger,
		thresholds: thresholds,
	}
}

// ===== DATA STRUCTURES =====

type SRSPlanEntry struct {
	ConceptName string      `json:"concept_name"`
	Priority    SRSPriority `json:"priority"`
	DaysOverdue int         `json:"days_overdue"`
	AvgMastery  int         `json:"avg_mastery"`
}

type SRSGroupSession struct {
	ClassID      uint        `json:"class_id"`
	ClassName    string      `json:"class_name"`
	ConceptName  string      `json:"concept_name"`
	Priority     SRSPriority `json:"priority"`
	DaysOverdue  int         `json:"days_overdue"`
	AvgMastery   int         `json:"avg_mastery"`
	StudentCount int         `json:"student_count"`
}

type PersonalSession struct {
	StudentID   string         `json:"student_id"`
	StudentName string         `json:"student_name"`
	Concepts    []SRSPlanEntry `json:"concepts"`
}

type SRSPlanResponse struct {
	GroupClasses     []SRSGroupSession `json:"group_classes"`
	PersonalSessions []PersonalSession `json:"personal_sessions"`
	GeneratedAt      time.Time         `json:"generated_at"`
}

type srsInputs struct {
	students    []*models.Student
	enrollments []*models.ClassEnrollment
	classes     []*models.Class
	mastery     []*models.ConceptMastery
}

// ===== SERVICE METHODS =====

func (s *srsPlanService) GetTeachingPlan(ctx context.Context, institutionID string, classID *uint, now time.Time) (*SRSPlanResponse, error) {
	if institutionID == "" {
		return nil, ErrInstitutionRequired
	}

	inputs := s.loadInputs(ctx, institutionID)
	return BuildTeachingPlan(inputs.students, inputs.enrollments, inputs.classes, inputs.mastery, classID, now, s.thresholds), nil
}

func (s *srsPlanService) loadInputs(ctx context.Context, institutionID string) srsInputs {
	var inputs srsInputs

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, err := s.repo.GetActiveStudents(gctx, institutionID)
		if err != nil {
			s.logger.Warn("student load failed, degrading teaching plan", "error", err)
			return nil
		}
		inputs.students = students
		return nil
	})
	g.Go(func() error {
		enrollments, err := s.repo.GetActiveEnrollments(gctx, institutionID)
		if err != nil {
			s.logger.Warn("enrollment load failed, degrading group sessions", "error", err)
			return nil
		}
		inputs.enrollments = enrollments
		return nil
	})
	g.Go(func() error {
		classes, err := s.repo.GetClasses(gctx, institutionID)
		if err != nil {
			s.logger.Warn("class load failed, degrading group sessions", "error", err)
			return nil
		}
		inputs.classes = classes
		return nil
	})
	g.Go(func() error {
		mastery, err := s.repo.GetMasteryRecords(gctx, institutionID)
		if err != nil {
			s.logger.Warn("mastery load failed, degrading teaching plan", "error", err)
			return nil
		}
		inputs.mastery = mastery
		return nil
	})
	_ = g.Wait()
	return inputs
}

// ===== PLAN CONSTRUCTION =====

// dueRecord is one mastery record inside the review horizon: overdue, due
// today, or upcoming within the lookahead window.
type dueRecord struct {
	record      *models.ConceptMastery
	priority    SRSPriority
	daysOverdue int
}

// BuildTeachingPlan derives the SRS teaching plan. A concept due for enough
// students of one class becomes a group session; every remaining due
// concept lands in its student's personal session. Passing a class filter
// restricts the plan to that class's roster.
func BuildTeachingPlan(
	students []*models.Student,
	enrollments []*models.ClassEnrollment,
	classes []*models.Class,
	mastery []*models.ConceptMastery,
	classFilter *uint,
	now time.Time,
	t config.Thresholds,
) *SRSPlanResponse {
	response := &SRSPlanResponse{
		GroupClasses:     []SRSGroupSession{},
		PersonalSessions: []PersonalSession{},
		GeneratedAt:      now,
	}

	studentNames := make(map[string]string, len(students))
	for _, student := range students {
		studentNames[student.ID] = student.FullName
	}
	classNames := make(map[uint]string, len(classes))
	for _, class := range classes {
		classNames[class.ID] = class.Name
	}

	// Roster maps, honoring the optional class filter.
	classRosters := make(map[uint]map[string]bool)
	inScope := make(map[string]bool)
	for _, enrollment := range enrollments {
		if classFilter != nil && enrollment.ClassID != *classFilter {
			continue
		}
		roster, ok := classRosters[enrollment.ClassID]
		if !ok {
			roster = make(map[string]bool)
			classRosters[enrollment.ClassID] = roster
		}
		roster[enrollment.StudentID] = true
		inScope[enrollment.StudentID] = true
	}
	if classFilter == nil {
		// Unfiltered plans cover unenrolled students too; their concepts
		// can only appear as personal sessions.
		for _, student := range students {
			inScope[student.ID] = true
		}
	}

	// Records inside the review horizon, grouped per student.
	dueByStudent := make(map[string][]dueRecord)
	for _, record := range mastery {
		if !inScope[record.StudentID] {
			continue
		}
		due, ok := classifyDue(record, now, t)
		if !ok {
			continue
		}
		dueByStudent[record.StudentID] = append(dueByStudent[record.StudentID], due)
	}

	// Group sessions: one per (class, concept) with enough students due.
	type groupKey struct {
		classID uint
		concept string
	}
	grouped := make(map[groupKey][]dueRecord)
	for classID, roster := range classRosters {
		for studentID := range roster {
			for _, due := range dueByStudent[studentID] {
				key := groupKey{classID, due.record.ConceptName}
				grouped[key] = append(grouped[key], due)
			}
		}
	}

	inGroup := make(map[string]map[string]bool) // studentID -> concept -> true
	for key, members := range grouped {
		if len(members) < t.SRSGroupMinSize {
			continue
		}

		masterySum, maxOverdue := 0, 0
		priority := SRSPriorityLow
		for _, member := range members {
			masterySum += member.record.MasteryScore
			if member.daysOverdue > maxOverdue {
				maxOverdue = member.daysOverdue
			}
			if srsPriorityRank[member.priority] > srsPriorityRank[priority] {
				priority = member.priority
			}
		}

		response.GroupClasses = append(response.GroupClasses, SRSGroupSession{
			ClassID:      key.classID,
			ClassName:    classNames[key.classID],
			ConceptName:  key.concept,
			Priority:     priority,
			DaysOverdue:  maxOverdue,
			AvgMastery:   int(math.Round(float64(masterySum) / float64(len(members)))),
			StudentCount: len(members),
		})

		for _, member := range members {
			concepts, ok := inGroup[member.record.StudentID]
			if !ok {
				concepts = make(map[string]bool)
				inGroup[member.record.StudentID] = concepts
			}
			concepts[key.concept] = true
		}
	}

	// Personal sessions: whatever a group session does not already cover.
	for studentID, dueRecords := range dueByStudent {
		var concepts []SRSPlanEntry
		for _, due := range dueRecords {
			if inGroup[studentID][due.record.ConceptName] {
				continue
			}
			concepts = append(concepts, SRSPlanEntry{
				ConceptName: due.record.ConceptName,
				Priority:    due.priority,
				DaysOverdue: due.daysOverdue,
				AvgMastery:  due.record.MasteryScore,
			})
		}
		if len(concepts) == 0 {
			continue
		}
		sort.Slice(concepts, func(i, j int) bool {
			if concepts[i].DaysOverdue != concepts[j].DaysOverdue {
				return concepts[i].DaysOverdue > concepts[j].DaysOverdue
			}
			return concepts[i].ConceptName < concepts[j].ConceptName
		})

		name := studentNames[studentID]
		if name == "" {
			name = studentID
		}
		response.PersonalSessions = append(response.PersonalSessions, PersonalSession{
			StudentID:   studentID,
			StudentName: name,
			Concepts:    concepts,
		})
	}

	sort.Slice(response.GroupClasses, func(i, j int) bool {
		a, b := response.GroupClasses[i], response.GroupClasses[j]
		if srsPriorityRank[a.Priority] != srsPriorityRank[b.Priority] {
			return srsPriorityRank[a.Priority] > srsPriorityRank[b.Priority]
		}
		if a.DaysOverdue != b.DaysOverdue {
			return a.DaysOverdue > b.DaysOverdue
		}
		if a.ClassName != b.ClassName {
			return a.ClassName < b.ClassName
		}
		return a.ConceptName < b.ConceptName
	})
	sort.Slice(response.PersonalSessions, func(i, j int) bool {
		return response.PersonalSessions[i].StudentName < response.PersonalSessions[j].StudentName
	})

	return response
}

// classifyDue places a record inside or outside the review horizon.
// Overdue reviews are high priority with a positive days-overdue count,
// reviews due today are medium, and future reviews within the lookahead
// window are low. Records with no scheduled review never appear.
func classifyDue(record *models.ConceptMastery, now time.Time, t config.Thresholds) (dueRecord, bool) {
	if record.NextReviewDate == nil {
		return dueRecord{}, false
	}

	today := now.UTC().Truncate(24 * time.Hour)
	reviewDay := record.NextReviewDate.UTC().Truncate(24 * time.Hour)

	switch {
	case reviewDay.Before(today):
		overdue := int(today.Sub(reviewDay).Hours() / 24)
		return dueRecord{record: record, priority: SRSPriorityHigh, daysOverdue: overdue}, true
	case reviewDay.Equal(today):
		return dueRecord{record: record, priority: SRSPriorityMedium, daysOverdue: 0}, true
	case !reviewDay.After(today.Add(time.Duration(t.SRSLookaheadDays) * 24 * time.Hour)):
		return dueRecord{record: record, priority: SRSPriorityLow, daysOverdue: 0}, true
	default:
		return dueRecord{}, false
	}
}
