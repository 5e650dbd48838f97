package haven

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// WelfareLevel is the aggregated health-check signal for elder-care use.
type WelfareLevel int

const (
	WelfareOK WelfareLevel = iota
	WelfareCheck
	WelfareConcern
	WelfareAlert
)

// String returns the string representation of a welfare level.
func (l WelfareLevel) String() string {
	switch l {
	case WelfareOK:
		return "ok"
	case WelfareCheck:
		return "check"
	case WelfareConcern:
		return "concern"
	case WelfareAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// ParseWelfareLevel converts a stored string back to a welfare level.
func ParseWelfareLevel(s string) WelfareLevel {
	switch s {
	case "check":
		return WelfareCheck
	case "concern":
		return WelfareConcern
	case "alert":
		return WelfareAlert
	default:
		return WelfareOK
	}
}

// ActivityStatus grades how long it has been since any monitored activity.
type ActivityStatus string

const (
	ActivityNormal           ActivityStatus = "normal"
	ActivityCheckRecommended ActivityStatus = "check_recommended"
	ActivityConcern          ActivityStatus = "concern"
	ActivityAlert            ActivityStatus = "alert"
)

// RoutineStatus grades routine completion so far today.
type RoutineStatus string

const (
	RoutineOnTrack     RoutineStatus = "on_track"
	RoutineBelowNormal RoutineStatus = "below_normal"
	RoutineConcerning  RoutineStatus = "concerning"
	RoutineAlert       RoutineStatus = "alert"
)

// EntityStatusLevel grades a single entity's live deviation.
type EntityStatusLevel int

const (
	EntityNormal EntityStatusLevel = iota
	EntityAttention
	EntityConcern
	EntityAlert
)

// String returns the string representation of an entity status level.
func (l EntityStatusLevel) String() string {
	switch l {
	case EntityNormal:
		return "normal"
	case EntityAttention:
		return "attention"
	case EntityConcern:
		return "concern"
	case EntityAlert:
		return "alert"
	default:
		return "unknown"
	}
}

func entityStatusForZ(z float64) EntityStatusLevel {
	switch {
	case z < 1.5:
		return EntityNormal
	case z < 2.5:
		return EntityAttention
	case z < 3.5:
		return EntityConcern
	default:
		return EntityAlert
	}
}

// ActivityContext describes time since the last monitored activity relative
// to the typical gap between activities.
type ActivityContext struct {
	LastActivity           time.Time // zero when nothing observed
	TimeSinceActivity      time.Duration
	TypicalIntervalSeconds float64
	ConcernLevel           float64 // time since / typical interval
	Status                 ActivityStatus
}

// RoutineProgress describes one entity's routine completion so far today.
type RoutineProgress struct {
	EntityID      string
	ExpectedByNow float64
	ActualToday   int
	Progress      float64 // 0-100
	Status        RoutineStatus
}

// EntityStatus describes one entity's live deviation from its baseline.
type EntityStatus struct {
	EntityID     string
	ZScore       float64
	ExpectedMean float64
	ActualValue  int
	Level        EntityStatusLevel
}

// WelfareReport aggregates activity recency, routine completion and
// per-entity deviations into one welfare signal with reasons and a
// recommendation.
type WelfareReport struct {
	Level          WelfareLevel
	Reasons        []string
	Recommendation string
	Activity       ActivityContext
	Routine        []RoutineProgress
	Entities       []EntityStatus
	GeneratedAt    time.Time
}

// TypicalIntervalSeconds estimates the typical gap in seconds between
// activities for today's weekday, aggregated across all entities. Returns 0
// when there is no baseline for today.
func (a *PatternAnalyzer) TypicalIntervalSeconds(now time.Time) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.typicalIntervalLocked(now)
}

func (a *PatternAnalyzer) typicalIntervalLocked(now time.Time) float64 {
	day := weekdayIndex(now)
	var expectedToday float64
	for _, p := range a.patterns {
		expectedToday += p.expectedDailyTotal(day)
	}
	if expectedToday <= 0 {
		return 0
	}
	return 86400 / expectedToday
}

// ActivityContextAt computes the time-since-activity concern grading.
func (a *PatternAnalyzer) ActivityContextAt(now time.Time) ActivityContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.activityContextLocked(now)
}

func (a *PatternAnalyzer) activityContextLocked(now time.Time) ActivityContext {
	ctx := ActivityContext{Status: ActivityNormal}

	last, ok := a.lastActivityTimeLocked()
	if !ok {
		return ctx
	}
	ctx.LastActivity = last
	ctx.TimeSinceActivity = now.Sub(last)
	ctx.TypicalIntervalSeconds = a.typicalIntervalLocked(now)

	if ctx.TypicalIntervalSeconds > 0 {
		ctx.ConcernLevel = ctx.TimeSinceActivity.Seconds() / ctx.TypicalIntervalSeconds
	}

	switch {
	case ctx.ConcernLevel < 1.5:
		ctx.Status = ActivityNormal
	case ctx.ConcernLevel < 2.5:
		ctx.Status = ActivityCheckRecommended
	case ctx.ConcernLevel < 4.0:
		ctx.Status = ActivityConcern
	default:
		ctx.Status = ActivityAlert
	}
	return ctx
}

// RoutineProgressAt computes routine completion per entity for today.
func (a *PatternAnalyzer) RoutineProgressAt(now time.Time) []RoutineProgress {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.routineProgressLocked(now)
}

func (a *PatternAnalyzer) routineProgressLocked(now time.Time) []RoutineProgress {
	day := weekdayIndex(now)
	interval := intervalIndex(now)
	today := midnight(now)

	ids := make([]string, 0, len(a.patterns))
	for id := range a.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]RoutineProgress, 0, len(ids))
	for _, entityID := range ids {
		p := a.patterns[entityID]
		expected := p.expectedByInterval(day, interval)

		var actual int
		if a.dailyCountDate.Equal(today) {
			actual = a.dailyCounts[entityID]
		}

		progress := 100.0
		if expected > 0 {
			progress = math.Min(100, float64(actual)/expected*100)
		}

		var status RoutineStatus
		switch {
		case progress >= 70:
			status = RoutineOnTrack
		case progress >= 40:
			status = RoutineBelowNormal
		case progress >= 20:
			status = RoutineConcerning
		default:
			status = RoutineAlert
		}

		out = append(out, RoutineProgress{
			EntityID:      entityID,
			ExpectedByNow: expected,
			ActualToday:   actual,
			Progress:      progress,
			Status:        status,
		})
	}
	return out
}

// EntityStatusesAt grades every entity's live current-interval count against
// its baseline, most concerning first.
func (a *PatternAnalyzer) EntityStatusesAt(now time.Time) []EntityStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.entityStatusesLocked(now)
}

func (a *PatternAnalyzer) entityStatusesLocked(now time.Time) []EntityStatus {
	activity := a.currentIntervalActivityLocked(now)

	ids := make([]string, 0, len(a.patterns))
	for id := range a.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]EntityStatus, 0, len(ids))
	for _, entityID := range ids {
		p := a.patterns[entityID]
		mean, stdDev := p.ExpectedActivity(now)
		if stdDev == 0 && mean == 0 {
			continue
		}
		actual := activity[entityID]
		z := a.zScore(float64(actual), mean, stdDev)
		out = append(out, EntityStatus{
			EntityID:     entityID,
			ZScore:       z,
			ExpectedMean: mean,
			ActualValue:  actual,
			Level:        entityStatusForZ(z),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level > out[j].Level
	})
	return out
}

// WelfareReportAt computes the full welfare report with explicit precedence:
// any alert condition wins, then concern, then routine trouble, then a
// check recommendation, otherwise ok.
func (a *PatternAnalyzer) WelfareReportAt(now time.Time) WelfareReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	report := WelfareReport{
		Activity:    a.activityContextLocked(now),
		Routine:     a.routineProgressLocked(now),
		Entities:    a.entityStatusesLocked(now),
		GeneratedAt: now,
	}

	var alertEntities, concernEntities, attentionEntities []string
	for _, es := range report.Entities {
		switch es.Level {
		case EntityAlert:
			alertEntities = append(alertEntities, es.EntityID)
		case EntityConcern:
			concernEntities = append(concernEntities, es.EntityID)
		case EntityAttention:
			attentionEntities = append(attentionEntities, es.EntityID)
		}
	}

	var routineTrouble []string
	for _, rp := range report.Routine {
		if rp.Status == RoutineConcerning || rp.Status == RoutineAlert {
			routineTrouble = append(routineTrouble, rp.EntityID)
		}
	}

	switch {
	case report.Activity.Status == ActivityAlert || len(alertEntities) > 0:
		report.Level = WelfareAlert
		if report.Activity.Status == ActivityAlert {
			report.Reasons = append(report.Reasons, fmt.Sprintf(
				"no activity for %s (typical gap %.0fs)",
				report.Activity.TimeSinceActivity.Round(time.Minute),
				report.Activity.TypicalIntervalSeconds))
		}
		for _, id := range alertEntities {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s far outside its usual pattern", id))
		}
		report.Recommendation = "Check on the resident immediately or contact them directly."

	case report.Activity.Status == ActivityConcern || len(concernEntities) > 0:
		report.Level = WelfareConcern
		if report.Activity.Status == ActivityConcern {
			report.Reasons = append(report.Reasons, fmt.Sprintf(
				"activity gap is %.1fx the typical interval", report.Activity.ConcernLevel))
		}
		for _, id := range concernEntities {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s deviating from its usual pattern", id))
		}
		report.Recommendation = "Consider checking in soon; activity is well outside the learned routine."

	case len(routineTrouble) > 0:
		report.Level = WelfareConcern
		for _, id := range routineTrouble {
			report.Reasons = append(report.Reasons, fmt.Sprintf("%s routine well behind its usual progress", id))
		}
		report.Recommendation = "Consider checking in soon; the daily routine is behind schedule."

	case report.Activity.Status == ActivityCheckRecommended || len(attentionEntities) > 1:
		report.Level = WelfareCheck
		if report.Activity.Status == ActivityCheckRecommended {
			report.Reasons = append(report.Reasons, "longer than usual since the last activity")
		}
		if len(attentionEntities) > 1 {
			report.Reasons = append(report.Reasons, fmt.Sprintf(
				"%d entities mildly outside their usual pattern", len(attentionEntities)))
		}
		report.Recommendation = "A quick check-in call is recommended."

	default:
		report.Level = WelfareOK
		report.Recommendation = "Activity matches the learned routine."
	}

	return report
}
