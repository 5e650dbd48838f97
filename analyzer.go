package haven

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// AnomalyType classifies a statistical anomaly by direction.
type AnomalyType string

const (
	// AnomalyUnusualActivity means more activity than the baseline predicts.
	AnomalyUnusualActivity AnomalyType = "unusual_activity"
	// AnomalyUnusualInactivity means less activity than the baseline predicts.
	AnomalyUnusualInactivity AnomalyType = "unusual_inactivity"
)

// Severity grades how far an observation deviates from the baseline.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityMinor
	SeverityModerate
	SeveritySignificant
	SeverityCritical
)

// String returns the string representation of a severity.
func (s Severity) String() string {
	switch s {
	case SeverityNormal:
		return "normal"
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeveritySignificant:
		return "significant"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// SeverityForZ maps a Z-score onto a severity band.
func SeverityForZ(z float64) Severity {
	switch {
	case z < 1.5:
		return SeverityNormal
	case z < 2.5:
		return SeverityMinor
	case z < 3.5:
		return SeverityModerate
	case z < 4.5:
		return SeveritySignificant
	default:
		return SeverityCritical
	}
}

// AnomalyResult is one statistical anomaly detected against the baseline.
// Results are ephemeral; only the analyzer's accumulated state persists.
type AnomalyResult struct {
	EntityID     string
	Type         AnomalyType
	ZScore       float64
	ExpectedMean float64
	ExpectedStd  float64
	ActualValue  float64
	Timestamp    time.Time
	TimeSlot     string // e.g. "monday 09:15"
	Severity     Severity
	Description  string
}

// PatternAnalyzer is the statistical pattern store and anomaly detector.
// It owns one EntityPattern per monitored entity plus the live bookkeeping
// (daily counts, current-interval activity) that detection reads.
type PatternAnalyzer struct {
	mu sync.RWMutex

	sensitivityThreshold float64
	learningPeriodDays   int

	patterns map[string]*EntityPattern

	dailyCounts    map[string]int
	dailyCountDate time.Time // midnight of the day the counts belong to

	currentIntervalActivity map[string]int
	currentInterval         int
	currentIntervalDay      int
}

// NewPatternAnalyzer creates an analyzer with the given Z-score threshold and
// learning period.
func NewPatternAnalyzer(sensitivityThreshold float64, learningPeriodDays int) *PatternAnalyzer {
	return &PatternAnalyzer{
		sensitivityThreshold:    sensitivityThreshold,
		learningPeriodDays:      learningPeriodDays,
		patterns:                make(map[string]*EntityPattern),
		dailyCounts:             make(map[string]int),
		currentIntervalActivity: make(map[string]int),
		currentInterval:         -1,
		currentIntervalDay:      -1,
	}
}

// SensitivityThreshold returns the configured Z-score threshold.
func (a *PatternAnalyzer) SensitivityThreshold() float64 {
	return a.sensitivityThreshold
}

// LearningPeriodDays returns the configured learning period in days.
func (a *PatternAnalyzer) LearningPeriodDays() int {
	return a.learningPeriodDays
}

// Pattern returns the pattern for an entity, creating it on first use.
func (a *PatternAnalyzer) Pattern(entityID string) *EntityPattern {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.patternLocked(entityID)
}

func (a *PatternAnalyzer) patternLocked(entityID string) *EntityPattern {
	p, ok := a.patterns[entityID]
	if !ok {
		p = NewEntityPattern(entityID)
		a.patterns[entityID] = p
	}
	return p
}

// EntityIDs returns the ids of all entities with recorded patterns.
func (a *PatternAnalyzer) EntityIDs() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ids := make([]string, 0, len(a.patterns))
	for id := range a.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func midnight(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// RecordStateChange folds one state change into the entity's baseline and the
// live daily/interval bookkeeping. Exactly one bucket is mutated.
func (a *PatternAnalyzer) RecordStateChange(entityID string, ts time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.patternLocked(entityID).RecordActivity(ts)

	today := midnight(ts)
	if !a.dailyCountDate.Equal(today) {
		a.dailyCounts = make(map[string]int)
		a.dailyCountDate = today
	}
	a.dailyCounts[entityID]++

	interval := intervalIndex(ts)
	day := weekdayIndex(ts)
	if interval != a.currentInterval || day != a.currentIntervalDay {
		a.currentInterval = interval
		a.currentIntervalDay = day
		a.currentIntervalActivity = make(map[string]int)
	}
	a.currentIntervalActivity[entityID]++
}

// ExpectedActivity returns the learned (mean, stddev) for an entity at the
// given timestamp. An unknown entity reads as (0, 0).
func (a *PatternAnalyzer) ExpectedActivity(entityID string, ts time.Time) (mean, stdDev float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.patterns[entityID]
	if !ok {
		return 0, 0
	}
	return p.ExpectedActivity(ts)
}

// CurrentIntervalActivity returns per-entity counts for the live 15-minute
// interval. The map is empty once the interval the counts belong to has
// rolled over.
func (a *PatternAnalyzer) CurrentIntervalActivity(now time.Time) map[string]int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.currentIntervalActivityLocked(now)
}

func (a *PatternAnalyzer) currentIntervalActivityLocked(now time.Time) map[string]int {
	if intervalIndex(now) != a.currentInterval || weekdayIndex(now) != a.currentIntervalDay {
		return map[string]int{}
	}
	out := make(map[string]int, len(a.currentIntervalActivity))
	for id, n := range a.currentIntervalActivity {
		out[id] = n
	}
	return out
}

// DailyCount returns today's activity count for one entity.
func (a *PatternAnalyzer) DailyCount(entityID string, now time.Time) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.dailyCountDate.Equal(midnight(now)) {
		return 0
	}
	return a.dailyCounts[entityID]
}

// TotalDailyCount returns today's activity count across all entities.
func (a *PatternAnalyzer) TotalDailyCount(now time.Time) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.dailyCountDate.Equal(midnight(now)) {
		return 0
	}
	var total int
	for _, n := range a.dailyCounts {
		total += n
	}
	return total
}

// Confidence reports baseline confidence in [0, 100]: full days of collected
// data relative to the learning period, measured from the earliest first
// observation across all entities.
func (a *PatternAnalyzer) Confidence(now time.Time) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.confidenceLocked(now)
}

func (a *PatternAnalyzer) confidenceLocked(now time.Time) float64 {
	var earliest time.Time
	for _, p := range a.patterns {
		if p.FirstObservation.IsZero() {
			continue
		}
		if earliest.IsZero() || p.FirstObservation.Before(earliest) {
			earliest = p.FirstObservation
		}
	}
	if earliest.IsZero() {
		return 0
	}
	days := int(now.Sub(earliest).Hours() / 24)
	return math.Min(100, float64(days)/float64(a.learningPeriodDays)*100)
}

// IsLearningComplete reports whether the learning period has fully elapsed.
func (a *PatternAnalyzer) IsLearningComplete(now time.Time) bool {
	return a.Confidence(now) >= 100
}

// ActivityScore reports current activity relative to the baseline in
// [0, 100]. With no baseline it returns a neutral 50.
func (a *PatternAnalyzer) ActivityScore(now time.Time) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.patterns) == 0 {
		return 0
	}

	var totalExpected, totalActual float64
	for entityID, p := range a.patterns {
		expectedMean, _ := p.ExpectedActivity(now)
		if expectedMean <= 0 {
			continue
		}
		var actual int
		if a.dailyCountDate.Equal(midnight(now)) {
			actual = a.dailyCounts[entityID]
		}
		totalExpected += expectedMean
		totalActual += math.Min(float64(actual)/IntervalsPerDay, expectedMean*2)
	}

	if totalExpected == 0 {
		return 50 // no baseline yet
	}
	return math.Min(100, totalActual/totalExpected*100)
}

// LastActivityTime returns the most recent observation across all entities.
// The second return is false when nothing has been observed.
func (a *PatternAnalyzer) LastActivityTime() (time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastActivityTimeLocked()
}

func (a *PatternAnalyzer) lastActivityTimeLocked() (time.Time, bool) {
	var last time.Time
	for _, p := range a.patterns {
		if !p.LastObservation.IsZero() && p.LastObservation.After(last) {
			last = p.LastObservation
		}
	}
	return last, !last.IsZero()
}

// zScore computes the deviation of an actual count from a learned
// (mean, stddev). A zero-variance slot with a different value is always
// flagged: +Inf when there was activity, threshold+1 when there was none.
// The threshold+1 sentinel has no interpretation as a real Z-score; it only
// guarantees the comparison against the threshold trips.
func (a *PatternAnalyzer) zScore(actual, mean, stdDev float64) float64 {
	switch {
	case stdDev > 0:
		return math.Abs(actual-mean) / stdDev
	case actual != mean:
		if actual > 0 {
			return math.Inf(1)
		}
		return a.sensitivityThreshold + 1
	default:
		return 0
	}
}

// CheckForAnomalies compares the live interval's activity against the
// baseline for every known entity. It returns nothing until the learning
// period is complete; this is a hard gate against early false positives.
func (a *PatternAnalyzer) CheckForAnomalies(now time.Time) []AnomalyResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.confidenceLocked(now) < 100 {
		return nil
	}

	activity := a.currentIntervalActivityLocked(now)
	var anomalies []AnomalyResult

	ids := make([]string, 0, len(a.patterns))
	for id := range a.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, entityID := range ids {
		p := a.patterns[entityID]
		mean, stdDev := p.ExpectedActivity(now)
		actual := float64(activity[entityID])

		// No data for this time slot yet.
		if stdDev == 0 && mean == 0 {
			continue
		}

		z := a.zScore(actual, mean, stdDev)
		if z <= a.sensitivityThreshold {
			continue
		}

		slot := p.TimeDescription(now)
		anomalyType := AnomalyUnusualInactivity
		word := "inactivity"
		if actual > mean {
			anomalyType = AnomalyUnusualActivity
			word = "activity"
		}

		anomalies = append(anomalies, AnomalyResult{
			EntityID:     entityID,
			Type:         anomalyType,
			ZScore:       z,
			ExpectedMean: mean,
			ExpectedStd:  stdDev,
			ActualValue:  actual,
			Timestamp:    now,
			TimeSlot:     slot,
			Severity:     SeverityForZ(z),
			Description: fmt.Sprintf(
				"Unusual %s for %s on %s: expected ~%.1f state changes, got %d",
				word, entityID, slot, mean, int(actual)),
		})
	}

	return anomalies
}
