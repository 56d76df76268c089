package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brightclass/insight-service/internal/cache"
	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/events"
	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
)

// Expected-impact copy is qualitative: a hint for the teacher, not a
// computed projection.
const (
	impactWeakConcept  = "High - closes the most widespread learning gap in the institution"
	impactOverdue      = "Medium - overdue reviews recover fastest when caught early"
	impactClassGap     = "High - lifting the weakest class narrows the overall spread"
	impactQuestionType = "Medium - targeted drills typically lift a weak question type within weeks"
)

// How far back class averages and question-type accuracy look.
const suggestionWindow = 30 * day

// SuggestionService re-aggregates the alert signals at institution scope
// into a short ordered list of actionable recommendations. Rules run in a
// fixed priority order and emit at most one suggestion each; the list is
// never re-sorted by magnitude.
type SuggestionService interface {
	GetSuggestions(ctx context.Context, institutionID string, now time.Time, limit int) ([]Suggestion, error)
}

type suggestionService struct {
	repo       repositories.TelemetryRepository
	logger     *slog.Logger
	thresholds config.Thresholds
	cache      cache.CacheService
	publisher  events.EventPublisher
	cacheTTL   time.Duration
}

func NewSuggestionService(
	repo repositories.TelemetryRepository,
	logger *slog.Logger,
	thresholds config.Thresholds,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	cacheTTL time.Duration,
) SuggestionService {
	return &suggestionService{
		repo:       repo,
		logger:     logger,
		thresholds: thresholds,
		cache:      cacheService,
		publisher:  publisher,
		cacheTTL:   cacheTTL,
	}
}

// ===== DATA STRUCTURES =====

type Suggestion struct {
	Priority       int                    `json:"priority"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Action         string                 `json:"action"`
	ExpectedImpact string                 `json:"expected_impact"`
	ActionType     string                 `json:"action_type"`
	SupportingData map[string]interface{} `json:"supporting_data,omitempty"`
}

type suggestionInputs struct {
	students []*models.Student
	attempts []*models.QuizAttempt
	mastery  []*models.ConceptMastery
	classes  []*models.Class
}

// ===== SERVICE METHODS =====

func (s *suggestionService) GetSuggestions(ctx context.Context, institutionID string, now time.Time, limit int) ([]Suggestion, error) {
	if institutionID == "" {
		return nil, ErrInstitutionRequired
	}

	cacheKey := fmt.Sprintf("insights:suggestions:%s", institutionID)
	var suggestions []Suggestion
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &suggestions); err == nil {
			return capSuggestions(suggestions, limit), nil
		}
	}

	inputs := s.loadInputs(ctx, institutionID, now)
	suggestions = BuildSuggestions(inputs.students, inputs.attempts, inputs.mastery, inputs.classes, now, s.thresholds)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, suggestions, s.cacheTTL); err != nil {
			s.logger.Debug("suggestions cache write failed", "error", err)
		}
	}

	s.publishWeakConcept(ctx, institutionID, suggestions, now)

	return capSuggestions(suggestions, limit), nil
}

func (s *suggestionService) loadInputs(ctx context.Context, institutionID string, now time.Time) suggestionInputs {
	var inputs suggestionInputs
	since := now.Add(-suggestionWindow)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, err := s.repo.GetActiveStudents(gctx, institutionID)
		if err != nil {
			s.logger.Warn("student load failed, degrading suggestions", "error", err)
			return nil
		}
		inputs.students = students
		return nil
	})
	g.Go(func() error {
		attempts, err := s.repo.GetAttemptsSince(gctx, institutionID, since)
		if err != nil {
			s.logger.Warn("attempt load failed, degrading class and question-type rules", "error", err)
			return nil
		}
		inputs.attempts = attempts
		return nil
	})
	g.Go(func() error {
		mastery, err := s.repo.GetMasteryRecords(gctx, institutionID)
		if err != nil {
			s.logger.Warn("mastery load failed, degrading concept rules", "error", err)
			return nil
		}
		inputs.mastery = mastery
		return nil
	})
	g.Go(func() error {
		classes, err := s.repo.GetClasses(gctx, institutionID)
		if err != nil {
			s.logger.Warn("class load failed, degrading class gap rule", "error", err)
			return nil
		}
		inputs.classes = classes
		return nil
	})
	_ = g.Wait()
	return inputs
}

func (s *suggestionService) publishWeakConcept(ctx context.Context, institutionID string, suggestions []Suggestion, now time.Time) {
	if s.publisher == nil {
		return
	}
	for _, suggestion := range suggestions {
		if suggestion.ActionType != "review_concept" {
			continue
		}
		data, _ := suggestion.SupportingData["concept_name"].(string)
		avg, _ := suggestion.SupportingData["avg_mastery"].(float64)
		count, _ := suggestion.SupportingData["student_count"].(int)

		event := &events.InsightEvent{
			ID:        uuid.NewString(),
			Type:      events.EventWeakConceptDetected,
			Timestamp: now,
			Source:    "insight-service",
			Version:   "1.0",
			Data: events.WeakConceptDetectedEvent{
				InstitutionID: institutionID,
				ConceptName:   data,
				AvgMastery:    avg,
				StudentCount:  count,
			},
		}
		if err := s.publisher.PublishInsightEvent(ctx, event); err != nil {
			s.logger.Warn("weak concept publish failed", "institution_id", institutionID, "error", err)
		}
		return
	}
}

func capSuggestions(suggestions []Suggestion, limit int) []Suggestion {
	if limit > 0 && len(suggestions) > limit {
		return suggestions[:limit]
	}
	return suggestions
}

// ===== SUGGESTION RULES =====

// BuildSuggestions runs the four rules in fixed priority order. Each rule
// contributes at most one suggestion; an empty scope yields an empty list.
func BuildSuggestions(
	students []*models.Student,
	attempts []*models.QuizAttempt,
	mastery []*models.ConceptMastery,
	classes []*models.Class,
	now time.Time,
	t config.Thresholds,
) []Suggestion {
	names := make(map[string]string, len(students))
	for _, student := range students {
		names[student.ID] = student.FullName
	}

	suggestions := []Suggestion{}
	priority := 1

	if s := weakestConceptSuggestion(mastery, priority); s != nil {
		suggestions = append(suggestions, *s)
		priority++
	}
	if s := overdueBacklogSuggestion(mastery, names, now, t, priority); s != nil {
		suggestions = append(suggestions, *s)
		priority++
	}
	if s := classGapSuggestion(attempts, classes, t, priority); s != nil {
		suggestions = append(suggestions, *s)
		priority++
	}
	if s := questionTypeSuggestion(attempts, t, priority); s != nil {
		suggestions = append(suggestions, *s)
	}

	return suggestions
}

// Rule 1: the concept with the lowest average mastery institution-wide.
func weakestConceptSuggestion(mastery []*models.ConceptMastery, priority int) *Suggestion {
	type agg struct {
		sum   int
		count int
	}
	byConcept := make(map[string]*agg)
	for _, record := range mastery {
		a, ok := byConcept[record.ConceptName]
		if !ok {
			a = &agg{}
			byConcept[record.ConceptName] = a
		}
		a.sum += record.MasteryScore
		a.count++
	}
	if len(byConcept) == 0 {
		return nil
	}

	weakest := ""
	weakestAvg := 101.0
	for concept, a := range byConcept {
		avg := float64(a.sum) / float64(a.count)
		if avg < weakestAvg || (avg == weakestAvg && concept < weakest) {
			weakest = concept
			weakestAvg = avg
		}
	}

	count := byConcept[weakest].count
	return &Suggestion{
		Priority:       priority,
		Title:          fmt.Sprintf("%q needs attention", weakest),
		Description:    fmt.Sprintf("%d students average %.0f%% mastery on %q, the weakest concept right now", count, weakestAvg, weakest),
		Action:         fmt.Sprintf("Plan a review session for %q", weakest),
		ExpectedImpact: impactWeakConcept,
		ActionType:     "review_concept",
		SupportingData: map[string]interface{}{
			"concept_name":  weakest,
			"avg_mastery":   weakestAvg,
			"student_count": count,
		},
	}
}

// Rule 2: the overdue-review backlog across all students.
func overdueBacklogSuggestion(mastery []*models.ConceptMastery, names map[string]string, now time.Time, t config.Thresholds, priority int) *Suggestion {
	overdueTotal := 0
	overdueByStudent := make(map[string]int)
	for _, record := range mastery {
		if record.IsOverdue(now) {
			overdueTotal++
			overdueByStudent[record.StudentID]++
		}
	}
	if overdueTotal == 0 {
		return nil
	}

	// Sample the most backlogged students for the description.
	type backlog struct {
		studentID string
		count     int
	}
	backlogs := make([]backlog, 0, len(overdueByStudent))
	for studentID, count := range overdueByStudent {
		backlogs = append(backlogs, backlog{studentID, count})
	}
	sort.Slice(backlogs, func(i, j int) bool {
		if backlogs[i].count != backlogs[j].count {
			return backlogs[i].count > backlogs[j].count
		}
		return backlogs[i].studentID < backlogs[j].studentID
	})

	sampled := make([]string, 0, t.SuggestionStudentSamples)
	for _, b := range backlogs {
		if len(sampled) == t.SuggestionStudentSamples {
			break
		}
		name := names[b.studentID]
		if name == "" {
			name = b.studentID
		}
		sampled = append(sampled, name)
	}

	description := fmt.Sprintf("%d concept reviews are overdue across %d students", overdueTotal, len(overdueByStudent))
	if len(sampled) > 0 {
		description = fmt.Sprintf("%s, including %s", description, joinNames(sampled))
	}

	return &Suggestion{
		Priority:       priority,
		Title:          "Overdue reviews are piling up",
		Description:    description,
		Action:         "Send review reminders to the students with the largest backlogs",
		ExpectedImpact: impactOverdue,
		ActionType:     "send_reminders",
		SupportingData: map[string]interface{}{
			"overdue_count": overdueTotal,
			"student_count": len(overdueByStudent),
			"sample":        sampled,
		},
	}
}

// Rule 3: flag the worst class when the best-to-worst average gap is wide.
func classGapSuggestion(attempts []*models.QuizAttempt, classes []*models.Class, t config.Thresholds, priority int) *Suggestion {
	type agg struct {
		sum   int
		count int
	}
	byClass := make(map[uint]*agg)
	for _, attempt := range attempts {
		a, ok := byClass[attempt.ClassID]
		if !ok {
			a = &agg{}
			byClass[attempt.ClassID] = a
		}
		a.sum += attempt.Score
		a.count++
	}
	if len(byClass) < 2 {
		return nil
	}

	classNames := make(map[uint]string, len(classes))
	for _, class := range classes {
		classNames[class.ID] = class.Name
	}

	var bestAvg, worstAvg float64
	var worstID uint
	first := true
	for classID, a := range byClass {
		avg := float64(a.sum) / float64(a.count)
		if first {
			bestAvg, worstAvg, worstID = avg, avg, classID
			first = false
			continue
		}
		if avg > bestAvg {
			bestAvg = avg
		}
		if avg < worstAvg || (avg == worstAvg && classID < worstID) {
			worstAvg = avg
			worstID = classID
		}
	}

	gap := bestAvg - worstAvg
	if gap <= float64(t.ClassGapPoints) {
		return nil
	}

	worstName := classNames[worstID]
	if worstName == "" {
		worstName = fmt.Sprintf("class %d", worstID)
	}

	return &Suggestion{
		Priority:       priority,
		Title:          fmt.Sprintf("%s is falling behind", worstName),
		Description:    fmt.Sprintf("%s averages %.0f%%, %.0f points behind the strongest class", worstName, worstAvg, gap),
		Action:         fmt.Sprintf("Check in with %s and consider extra support", worstName),
		ExpectedImpact: impactClassGap,
		ActionType:     "support_class",
		SupportingData: map[string]interface{}{
			"class_id":  worstID,
			"class_avg": worstAvg,
			"gap":       gap,
		},
	}
}

// Rule 4: the question type with the lowest accuracy, when below cutoff.
func questionTypeSuggestion(attempts []*models.QuizAttempt, t config.Thresholds, priority int) *Suggestion {
	type agg struct {
		correct int
		total   int
	}
	byType := make(map[models.QuestionType]*agg)
	for _, attempt := range attempts {
		for _, answer := range attempt.AnswerBreakdowns() {
			a, ok := byType[answer.QuestionType]
			if !ok {
				a = &agg{}
				byType[answer.QuestionType] = a
			}
			a.total++
			if answer.IsCorrect {
				a.correct++
			}
		}
	}
	if len(byType) == 0 {
		return nil
	}

	var weakest models.QuestionType
	weakestAccuracy := 101.0
	for questionType, a := range byType {
		accuracy := float64(a.correct) / float64(a.total) * 100
		if accuracy < weakestAccuracy || (accuracy == weakestAccuracy && questionType < weakest) {
			weakest = questionType
			weakestAccuracy = accuracy
		}
	}
	if weakestAccuracy >= float64(t.QuestionTypeAccuracyPct) {
		return nil
	}

	return &Suggestion{
		Priority:       priority,
		Title:          fmt.Sprintf("Students struggle with %s questions", weakest),
		Description:    fmt.Sprintf("Only %.0f%% of %s answers were correct recently", weakestAccuracy, weakest),
		Action:         fmt.Sprintf("Add %s practice to upcoming quizzes", weakest),
		ExpectedImpact: impactQuestionType,
		ActionType:     "practice_question_type",
		SupportingData: map[string]interface{}{
			"question_type": string(weakest),
			"accuracy":      weakestAccuracy,
		},
	}
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		joined := names[0]
		for _, name := range names[1 : len(names)-1] {
			joined += ", " + name
		}
		return joined + " and " + names[len(names)-1]
	}
}
