package services

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/brightclass/insight-service/internal/config"
	"github.com/brightclass/insight-service/internal/models"
	"github.com/brightclass/insight-service/internal/repositories"
)

// Health score tier weights. The weighted mean favors higher tiers so an
// institution moving records upward always moves the score upward.
const (
	healthWeightMastered   = 100
	healthWeightImproving  = 60
	healthWeightStruggling = 20
)

// MasteryService buckets concept-mastery rows into struggling / improving /
// mastered tiers and derives the institution health metrics shown on the
// SRS analytics panel.
type MasteryService interface {
	GetSRSAnalytics(ctx context.Context, institutionID string, now time.Time) (*SRSAnalytics, error)
}

type masteryService struct {
	repo       repositories.TelemetryRepository
	logger     *slog.Logger
	thresholds config.Thresholds
}

func NewMasteryService(repo repositories.TelemetryRepository, logger *slog.Logger, thresholds config.Thresholds) MasteryService {
	return &masteryService{
		repo:       repo,
		logger:     logger,
		thresholds: thresholds,
	}
}

// ===== DATA STRUCTURES =====

type MasteryDistribution struct {
	Struggling int `json:"struggling"`
	Improving  int `json:"improving"`
	Mastered   int `json:"mastered"`
}

type SRSAnalytics struct {
	HealthScore     int                 `json:"health_score"`
	Distribution    MasteryDistribution `json:"distribution"`
	ReviewAdherence int                 `json:"review_adherence"`
	OverdueCount    int                 `json:"overdue_count"`
	TotalRecords    int                 `json:"total_records"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// MasteryBreakdown is the classifier output for one scope. The partition is
// exhaustive and disjoint: Struggling + Improving + Mastered == Total.
type MasteryBreakdown struct {
	Struggling      int
	Improving       int
	Mastered        int
	Total           int
	Overdue         int
	HealthScore     float64
	ReviewAdherence float64
}

// ===== SERVICE METHODS =====

func (s *masteryService) GetSRSAnalytics(ctx context.Context, institutionID string, now time.Time) (*SRSAnalytics, error) {
	records, err := s.repo.GetMasteryRecords(ctx, institutionID)
	if err != nil {
		// Fail closed: an unavailable store degrades to the empty-scope
		// zero state rather than blocking the dashboard.
		s.logger.Warn("mastery load failed, serving zero state",
			"institution_id", institutionID, "error", err)
		records = nil
	}

	breakdown := ClassifyMastery(records, now, s.thresholds)

	return &SRSAnalytics{
		HealthScore: int(math.Round(breakdown.HealthScore)),
		Distribution: MasteryDistribution{
			Struggling: breakdown.Struggling,
			Improving:  breakdown.Improving,
			Mastered:   breakdown.Mastered,
		},
		ReviewAdherence: int(math.Round(breakdown.ReviewAdherence)),
		OverdueCount:    breakdown.Overdue,
		TotalRecords:    breakdown.Total,
		GeneratedAt:     now,
	}, nil
}

// ===== CLASSIFICATION =====

// ClassifyMastery partitions records by score: struggling below
// StrugglingBelow, mastered at or above MasteredFrom, improving in between.
// An empty scope returns the zero breakdown, never a division by zero.
func ClassifyMastery(records []*models.ConceptMastery, now time.Time, t config.Thresholds) MasteryBreakdown {
	var b MasteryBreakdown

	for _, record := range records {
		b.Total++
		switch {
		case record.MasteryScore < t.StrugglingBelow:
			b.Struggling++
		case record.MasteryScore >= t.MasteredFrom:
			b.Mastered++
		default:
			b.Improving++
		}
		if record.IsOverdue(now) {
			b.Overdue++
		}
	}

	if b.Total == 0 {
		return b
	}

	weighted := b.Mastered*healthWeightMastered +
		b.Improving*healthWeightImproving +
		b.Struggling*healthWeightStruggling
	b.HealthScore = float64(weighted) / float64(b.Total)
	b.ReviewAdherence = float64(b.Total-b.Overdue) / float64(b.Total) * 100

	return b
}
