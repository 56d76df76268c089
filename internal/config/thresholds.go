package config

// Thresholds collects every tunable cutoff used by the insight services.
// Keeping them in one struct lets tests pin behavior at each boundary and
// lets operators retune without touching classification logic.
type Thresholds struct {
	// Weekly performance (trailing 7-day average score).
	LowScoreBelow      int // avg below this is a critical low_score alert
	ModerateScoreBelow int // avg in [LowScoreBelow, this) is a warning

	// Week-over-week score delta, in points.
	DecliningDeltaBelow int // delta below this (negative) is critical
	ImprovingDeltaAbove int // delta above this is a positive alert

	// Inactivity, in days since last attempt.
	InactiveAfterDays         int // [this, SeverelyInactiveAfterDays) is inactive
	SeverelyInactiveAfterDays int // at or beyond is severely inactive

	// Concept mastery tiers. Struggling is score < StrugglingBelow,
	// mastered is score >= MasteredFrom, improving is in between.
	StrugglingBelow int
	MasteredFrom    int

	// Per-student struggling-concept count that escalates to an alert.
	StrugglingConceptAlertCount int

	// Streak length celebrated with a positive alert.
	LongStreakDays int

	// Institution-level weak-concept alerting.
	WeakConceptMinStudents int // minimum cohort size before a concept is flagged
	WeakConceptAvgBelow    int // average mastery below this flags the concept

	// Suggestion rules.
	ClassGapPoints           int // best-minus-worst class average that flags the worst class
	QuestionTypeAccuracyPct  int // lowest question-type accuracy below this suggests training
	SuggestionStudentSamples int // overdue-review students listed in a suggestion

	// SRS teaching plan.
	SRSLookaheadDays int // future reviews within this window appear as low priority
	SRSGroupMinSize  int // students due on a concept in one class to form a group session
}

// DefaultThresholds mirrors the tuning the dashboard shipped with.
func DefaultThresholds() Thresholds {
	return Thresholds{
		LowScoreBelow:      60,
		ModerateScoreBelow: 70,

		DecliningDeltaBelow: -20,
		ImprovingDeltaAbove: 20,

		InactiveAfterDays:         7,
		SeverelyInactiveAfterDays: 30,

		StrugglingBelow: 40,
		MasteredFrom:    70,

		StrugglingConceptAlertCount: 3,
		LongStreakDays:              7,

		WeakConceptMinStudents: 5,
		WeakConceptAvgBelow:    50,

		ClassGapPoints:           15,
		QuestionTypeAccuracyPct:  70,
		SuggestionStudentSamples: 3,

		SRSLookaheadDays: 7,
		SRSGroupMinSize:  2,
	}
}
