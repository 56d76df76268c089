package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/brightclass/insight-service/internal/cache"
	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/events"
	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
)

type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityWarning  AlertSeverity = "warning"
	SeverityPositive AlertSeverity = "positive"
)

// severityWeight orders critical above warning. Positive is a distinct
// good-news bucket, not a rank below warning; the weight only exists so a
// student's merged record lands in the most urgent bucket.
var severityWeight = map[AlertSeverity]int{
	SeverityCritical: 3,
	SeverityWarning:  2,
	SeverityPositive: 1,
}

type AlertType string

const (
	AlertLowScore           AlertType = "low_score"
	AlertModerateScore      AlertType = "moderate_score"
	AlertNeverStarted       AlertType = "never_started"
	AlertInactive           AlertType = "inactive"
	AlertVeryInactive       AlertType = "very_inactive"
	AlertDecliningScore     AlertType = "declining_score"
	AlertImproving          AlertType = "improving"
	AlertStrugglingConcepts AlertType = "struggling_concepts"
	AlertLongStreak         AlertType = "long_streak"
	AlertWeakConcept        AlertType = "weak_concept"
)

// AlertService turns raw quiz telemetry into the severity-bucketed alert
// feed on the teacher dashboard. Alerts are computed fresh per request and
// never persisted; a short redis TTL plus singleflight keeps concurrent
// dashboard loads from recomputing the same institution.
type AlertService interface {
	GetAlerts(ctx context.Context, institutionID string, now time.Time) (*AlertsResponse, error)
}

type alertService struct {
	repo       repositories.TelemetryRepository
	logger     *slog.Logger
	thresholds config.Thresholds
	cache      cache.CacheService
	publisher  events.EventPublisher
	cacheTTL   time.Duration

	flight singleflight.Group
}

func NewAlertService(
	repo repositories.TelemetryRepository,
	logger *slog.Logger,
	thresholds config.Thresholds,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	cacheTTL time.Duration,
) AlertService {
	return &alertService{
		repo:       repo,
		logger:     logger,
		thresholds: thresholds,
		cache:      cacheService,
		publisher:  publisher,
		cacheTTL:   cacheTTL,
	}
}

// ===== DATA STRUCTURES =====

// Alert is one student's merged record (or one institution-wide concept
// record). When several issues apply, Message carries the first issue's
// text plus a "(+N more issues)" suffix and Severity is the highest among
// them.
type Alert struct {
	StudentID   string        `json:"student_id,omitempty"`
	StudentName string        `json:"student_name,omitempty"`
	Severity    AlertSeverity `json:"severity"`
	Type        AlertType     `json:"type"`
	Message     string        `json:"message"`
	Value       float64       `json:"value"`
	Action      string        `json:"action"`
	IssueCount  int           `json:"issue_count"`
}

type AlertsResponse struct {
	Critical    []Alert   `json:"critical"`
	Warnings    []Alert   `json:"warnings"`
	Positive    []Alert   `json:"positive"`
	GeneratedAt time.Time `json:"generated_at"`
}

// AlertIssue is one detected problem (or win) before per-student merging.
type AlertIssue struct {
	Type     AlertType
	Severity AlertSeverity
	Message  string
	Value    float64
	Action   string
}

// alertInputs is everything one alerts run needs, loaded in four batch
// queries instead of per-student round trips.
type alertInputs struct {
	students []*models.Student
	attempts []*models.QuizAttempt
	activity []repositories.StudentActivity
	mastery  []*models.ConceptMastery
}

// ===== SERVICE METHODS =====

func (s *alertService) GetAlerts(ctx context.Context, institutionID string, now time.Time) (*AlertsResponse, error) {
	if institutionID == "" {
		return nil, ErrInstitutionRequired
	}

	cacheKey := fmt.Sprintf("insights:alerts:%s", institutionID)
	if s.cache != nil {
		var cached AlertsResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	// Coalesce concurrent requests for the same institution into one
	// computation; every caller gets the shared result.
	result, err, _ := s.flight.Do(cacheKey, func() (interface{}, error) {
		inputs := s.loadInputs(ctx, institutionID, now)
		response := BuildAlerts(inputs.students, inputs.attempts, inputs.activity, inputs.mastery, now, s.thresholds)

		if s.cache != nil {
			if err := s.cache.Set(ctx, cacheKey, response, s.cacheTTL); err != nil {
				s.logger.Debug("alerts cache write failed", "error", err)
			}
		}

		s.publishAlertEvents(ctx, institutionID, response)
		return response, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*AlertsResponse), nil
}

// loadInputs fans out the four independent store reads. Each read fails
// closed: an error or deadline degrades its metric to the empty set and the
// rest of the response still computes.
func (s *alertService) loadInputs(ctx context.Context, institutionID string, now time.Time) alertInputs {
	var inputs alertInputs
	since := now.Add(-14 * day)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		students, err := s.repo.GetActiveStudents(gctx, institutionID)
		if err != nil {
			s.logger.Warn("student load failed, degrading to empty scope", "error", err)
			return nil
		}
		inputs.students = students
		return nil
	})
	g.Go(func() error {
		attempts, err := s.repo.GetAttemptsSince(gctx, institutionID, since)
		if err != nil {
			s.logger.Warn("attempt load failed, degrading score alerts", "error", err)
			return nil
		}
		inputs.attempts = attempts
		return nil
	})
	g.Go(func() error {
		activity, err := s.repo.GetStudentActivity(gctx, institutionID)
		if err != nil {
			s.logger.Warn("activity load failed, degrading inactivity alerts", "error", err)
			return nil
		}
		inputs.activity = activity
		return nil
	})
	g.Go(func() error {
		mastery, err := s.repo.GetMasteryRecords(gctx, institutionID)
		if err != nil {
			s.logger.Warn("mastery load failed, degrading concept alerts", "error", err)
			return nil
		}
		inputs.mastery = mastery
		return nil
	})

	// The closures swallow their own errors, so Wait only synchronizes.
	_ = g.Wait()
	return inputs
}

func (s *alertService) publishAlertEvents(ctx context.Context, institutionID string, response *AlertsResponse) {
	if s.publisher == nil || len(response.Critical) == 0 {
		return
	}

	studentIDs := make([]string, 0, len(response.Critical))
	for _, alert := range response.Critical {
		if alert.StudentID != "" {
			studentIDs = append(studentIDs, alert.StudentID)
		}
	}

	event := &events.InsightEvent{
		ID:        uuid.NewString(),
		Type:      events.EventAlertsComputed,
		Timestamp: response.GeneratedAt,
		Source:    "insight-service",
		Version:   "1.0",
		Data: events.AlertsComputedEvent{
			InstitutionID:      institutionID,
			CriticalCount:      len(response.Critical),
			WarningCount:       len(response.Warnings),
			PositiveCount:      len(response.Positive),
			CriticalStudentIDs: studentIDs,
			GeneratedAt:        response.GeneratedAt,
		},
	}

	// Fire and forget: the digest is a convenience for the notification
	// pipeline, never a reason to fail a dashboard response.
	if err := s.publisher.PublishInsightEvent(ctx, event); err != nil {
		s.logger.Warn("alert digest publish failed", "institution_id", institutionID, "error", err)
	}
}

// ===== ALERT PIPELINE =====

// BuildAlerts runs the per-student issue pipeline over in-memory groupings
// and merges each student's issues into one bucketed record. Zero students
// yields empty buckets, never an error.
func BuildAlerts(
	students []*models.Student,
	attempts []*models.QuizAttempt,
	activity []repositories.StudentActivity,
	mastery []*models.ConceptMastery,
	now time.Time,
	t config.Thresholds,
) *AlertsResponse {
	response := &AlertsResponse{
		Critical:    []Alert{},
		Warnings:    []Alert{},
		Positive:    []Alert{},
		GeneratedAt: now,
	}

	attemptsByStudent := make(map[string][]*models.QuizAttempt)
	for _, attempt := range attempts {
		attemptsByStudent[attempt.StudentID] = append(attemptsByStudent[attempt.StudentID], attempt)
	}
	activityByStudent := make(map[string]repositories.StudentActivity, len(activity))
	for _, row := range activity {
		activityByStudent[row.StudentID] = row
	}
	strugglingByStudent := make(map[string]int)
	for _, record := range mastery {
		if record.MasteryScore < t.StrugglingBelow {
			strugglingByStudent[record.StudentID]++
		}
	}

	for _, student := range students {
		issues := studentIssues(
			attemptsByStudent[student.ID],
			activityByStudent[student.ID],
			strugglingByStudent[student.ID],
			now, t,
		)
		if len(issues) == 0 {
			continue
		}

		severity, message, count := CombineIssues(issues)
		alert := Alert{
			StudentID:   student.ID,
			StudentName: student.FullName,
			Severity:    severity,
			Type:        issues[0].Type,
			Message:     message,
			Value:       issues[0].Value,
			Action:      issues[0].Action,
			IssueCount:  count,
		}

		switch severity {
		case SeverityCritical:
			response.Critical = append(response.Critical, alert)
		case SeverityWarning:
			response.Warnings = append(response.Warnings, alert)
		case SeverityPositive:
			response.Positive = append(response.Positive, alert)
		}
	}

	response.Warnings = append(response.Warnings, conceptAlerts(mastery, t)...)

	sortBucket(response.Critical)
	sortBucket(response.Warnings)
	// Positive alerts are listed, not comparatively ranked; keep student
	// iteration order.

	return response
}

// studentIssues runs the five per-student checks in their fixed order. The
// first issue generated becomes the merged record's primary message.
func studentIssues(
	attempts []*models.QuizAttempt,
	activity repositories.StudentActivity,
	strugglingCount int,
	now time.Time,
	t config.Thresholds,
) []AlertIssue {
	var issues []AlertIssue

	// 1. Weekly performance
	avg, count := windowAverage(attempts, now.Add(-7*day), now.Add(day))
	if count > 0 && avg < float64(t.LowScoreBelow) {
		issues = append(issues, AlertIssue{
			Type:     AlertLowScore,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Weekly average of %.0f%% is below the passing line", avg),
			Value:    avg,
			Action:   "review_recent_quizzes",
		})
	} else if count > 0 && avg < float64(t.ModerateScoreBelow) {
		issues = append(issues, AlertIssue{
			Type:     AlertModerateScore,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Weekly average of %.0f%% needs attention", avg),
			Value:    avg,
			Action:   "monitor_progress",
		})
	}

	// 2. Inactivity. All three tiers are critical; the tier only changes
	// the message and the suggested action.
	switch days := activityDays(activity, now); {
	case days == InactivityNever:
		issues = append(issues, AlertIssue{
			Type:     AlertNeverStarted,
			Severity: SeverityCritical,
			Message:  "Has never attempted a quiz",
			Value:    0,
			Action:   "send_welcome_nudge",
		})
	case days >= t.SeverelyInactiveAfterDays:
		issues = append(issues, AlertIssue{
			Type:     AlertVeryInactive,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("No quiz activity for %d days", days),
			Value:    float64(days),
			Action:   "contact_student",
		})
	case days >= t.InactiveAfterDays:
		issues = append(issues, AlertIssue{
			Type:     AlertInactive,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Inactive for %d days", days),
			Value:    float64(days),
			Action:   "send_reminder",
		})
	}

	// 3. Week-over-week delta. nil means no data, which is not a zero
	// change and triggers nothing.
	if delta := scoreDelta(attempts, now); delta != nil {
		if *delta < t.DecliningDeltaBelow {
			issues = append(issues, AlertIssue{
				Type:     AlertDecliningScore,
				Severity: SeverityCritical,
				Message:  fmt.Sprintf("Score dropped %d points week over week", -*delta),
				Value:    float64(*delta),
				Action:   "schedule_checkin",
			})
		} else if *delta > t.ImprovingDeltaAbove {
			issues = append(issues, AlertIssue{
				Type:     AlertImproving,
				Severity: SeverityPositive,
				Message:  fmt.Sprintf("Score improved %d points week over week", *delta),
				Value:    float64(*delta),
				Action:   "send_encouragement",
			})
		}
	}

	// 4. Struggling concepts
	if strugglingCount >= t.StrugglingConceptAlertCount {
		issues = append(issues, AlertIssue{
			Type:     AlertStrugglingConcepts,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Struggling with %d concepts", strugglingCount),
			Value:    float64(strugglingCount),
			Action:   "assign_review_session",
		})
	}

	// 5. Streak
	if activity.LatestStreak >= t.LongStreakDays && !activity.LastQuizDate.IsZero() {
		issues = append(issues, AlertIssue{
			Type:     AlertLongStreak,
			Severity: SeverityPositive,
			Message:  fmt.Sprintf("On a %d-day quiz streak", activity.LatestStreak),
			Value:    float64(activity.LatestStreak),
			Action:   "celebrate_streak",
		})
	}

	return issues
}

// activityDays maps an activity row to inactivity days, with the sentinel
// for students absent from the aggregate.
func activityDays(activity repositories.StudentActivity, now time.Time) int {
	if activity.LastQuizDate.IsZero() {
		return InactivityNever
	}
	return inactivityDays(activity.LastQuizDate, now)
}

// CombineIssues reduces one student's issues to the merged record fields:
// highest severity wins, the first issue's message leads, and additional
// issues collapse into a "(+N more issues)" suffix.
func CombineIssues(issues []AlertIssue) (AlertSeverity, string, int) {
	if len(issues) == 0 {
		return "", "", 0
	}

	severity := issues[0].Severity
	for _, issue := range issues[1:] {
		if severityWeight[issue.Severity] > severityWeight[severity] {
			severity = issue.Severity
		}
	}

	message := issues[0].Message
	if len(issues) > 1 {
		message = fmt.Sprintf("%s (+%d more issues)", message, len(issues)-1)
	}

	return severity, message, len(issues)
}

// conceptAlerts emits one institution-wide warning per concept with a large
// enough cohort and a weak average. These are not tied to a single student.
func conceptAlerts(mastery []*models.ConceptMastery, t config.Thresholds) []Alert {
	type conceptAgg struct {
		sum   int
		count int
	}
	byConcept := make(map[string]*conceptAgg)
	var order []string
	for _, record := range mastery {
		agg, ok := byConcept[record.ConceptName]
		if !ok {
			agg = &conceptAgg{}
			byConcept[record.ConceptName] = agg
			order = append(order, record.ConceptName)
		}
		agg.sum += record.MasteryScore
		agg.count++
	}
	sort.Strings(order)

	var alerts []Alert
	for _, concept := range order {
		agg := byConcept[concept]
		if agg.count < t.WeakConceptMinStudents {
			continue
		}
		avg := float64(agg.sum) / float64(agg.count)
		if avg >= float64(t.WeakConceptAvgBelow) {
			continue
		}
		alerts = append(alerts, Alert{
			Severity:   SeverityWarning,
			Type:       AlertWeakConcept,
			Message:    fmt.Sprintf("Concept %q averages %.0f%% mastery across %d students", concept, avg, agg.count),
			Value:      avg,
			Action:     "plan_group_review",
			IssueCount: 1,
		})
	}
	return alerts
}

// sortBucket orders a bucket with the most issue-laden students first so the
// dashboard surfaces the heaviest records at the top.
func sortBucket(bucket []Alert) {
	sort.SliceStable(bucket, func(i, j int) bool {
		if bucket[i].IssueCount != bucket[j].IssueCount {
			return bucket[i].IssueCount > bucket[j].IssueCount
		}
		return bucket[i].StudentName < bucket[j].StudentName
	})
}
