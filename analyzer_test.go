package haven

import (
	"math"
	"testing"

	"github.com/havenwatch/haven/internal/testutil"
)

const testMotion = "binary_sensor.kitchen_motion"

// seedDailyActivity records one event per day at the given clock time for
// each of days consecutive days starting Monday 2024-01-01.
func seedDailyActivity(a *PatternAnalyzer, entityID string, days, hour, minute int) {
	for day := 0; day < days; day++ {
		a.RecordStateChange(entityID, testutil.Day(day, hour, minute))
	}
}

func TestConfidenceGrowsAndClamps(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	if got := a.Confidence(testutil.Day(0, 12, 0)); got != 0 {
		t.Errorf("confidence with no data should be 0, got %f", got)
	}

	a.RecordStateChange(testMotion, testutil.Day(0, 8, 0))

	tests := []struct {
		day  int
		want float64
	}{
		{0, 0},
		{3, 3.0 / 7.0 * 100},
		{7, 100},
		{20, 100},
	}
	prev := -1.0
	for _, tt := range tests {
		got := a.Confidence(testutil.Day(tt.day, 8, 0))
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("confidence on day %d = %f, want %f", tt.day, got, tt.want)
		}
		if got < prev {
			t.Errorf("confidence decreased from %f to %f", prev, got)
		}
		prev = got
	}
}

func TestNoAnomaliesBeforeLearningComplete(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)
	seedDailyActivity(a, testMotion, 3, 8, 5)

	now := testutil.Day(3, 8, 10)
	if a.IsLearningComplete(now) {
		t.Fatal("learning should not be complete after 3 of 7 days")
	}
	if anomalies := a.CheckForAnomalies(now); len(anomalies) != 0 {
		t.Errorf("expected no anomalies during learning, got %d", len(anomalies))
	}
}

func TestDetectsUnusualInactivity(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)
	// Two full weeks of a strict 08:05 routine.
	seedDailyActivity(a, testMotion, 14, 8, 5)

	// Day 14 is a Monday; nothing has happened in the 08:00 slot.
	now := testutil.Day(14, 8, 10)
	if !a.IsLearningComplete(now) {
		t.Fatal("learning should be complete after 14 days")
	}

	anomalies := a.CheckForAnomalies(now)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	got := anomalies[0]
	if got.Type != AnomalyUnusualInactivity {
		t.Errorf("expected %s, got %s", AnomalyUnusualInactivity, got.Type)
	}
	if got.EntityID != testMotion {
		t.Errorf("unexpected entity %s", got.EntityID)
	}
	if got.TimeSlot != "monday 08:00" {
		t.Errorf("unexpected time slot %q", got.TimeSlot)
	}
	// Zero-variance slot with zero activity scores threshold+1.
	if math.Abs(got.ZScore-3.0) > 1e-9 {
		t.Errorf("expected z-score 3.0, got %f", got.ZScore)
	}
	want := "Unusual inactivity for binary_sensor.kitchen_motion on monday 08:00: expected ~1.0 state changes, got 0"
	if got.Description != want {
		t.Errorf("description mismatch:\n got %q\nwant %q", got.Description, want)
	}
}

func TestDetectsUnusualActivityBurst(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)
	seedDailyActivity(a, testMotion, 14, 8, 5)

	// Six events in a slot that normally sees one.
	for i := 0; i < 6; i++ {
		a.RecordStateChange(testMotion, testutil.Day(14, 8, 5+i))
	}

	now := testutil.Day(14, 8, 12)
	anomalies := a.CheckForAnomalies(now)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	got := anomalies[0]
	if got.Type != AnomalyUnusualActivity {
		t.Errorf("expected %s, got %s", AnomalyUnusualActivity, got.Type)
	}
	if !math.IsInf(got.ZScore, 1) {
		t.Errorf("zero-variance burst should score +Inf, got %f", got.ZScore)
	}
	if got.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", got.Severity)
	}
	if got.ActualValue != 6 {
		t.Errorf("expected actual 6, got %f", got.ActualValue)
	}
}

func TestZScoreBranches(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	if z := a.zScore(7, 3, 2); math.Abs(z-2.0) > 1e-9 {
		t.Errorf("expected z 2.0, got %f", z)
	}
	if z := a.zScore(3, 3, 0); z != 0 {
		t.Errorf("actual == mean with zero variance should be 0, got %f", z)
	}
	if z := a.zScore(0, 3, 0); z != 3.0 {
		t.Errorf("no activity against zero variance should be threshold+1, got %f", z)
	}
	if z := a.zScore(5, 3, 0); !math.IsInf(z, 1) {
		t.Errorf("activity against zero variance should be +Inf, got %f", z)
	}
}

func TestSeverityBands(t *testing.T) {
	tests := []struct {
		z    float64
		want Severity
	}{
		{0.5, SeverityNormal},
		{1.5, SeverityMinor},
		{2.5, SeverityModerate},
		{3.5, SeveritySignificant},
		{4.5, SeverityCritical},
		{math.Inf(1), SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityForZ(tt.z); got != tt.want {
			t.Errorf("SeverityForZ(%f) = %s, want %s", tt.z, got, tt.want)
		}
	}
}

func TestDailyCountsResetAtMidnight(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	a.RecordStateChange(testMotion, testutil.Day(0, 9, 0))
	a.RecordStateChange(testMotion, testutil.Day(0, 10, 0))

	if got := a.DailyCount(testMotion, testutil.Day(0, 11, 0)); got != 2 {
		t.Errorf("expected daily count 2, got %d", got)
	}
	if got := a.TotalDailyCount(testutil.Day(0, 11, 0)); got != 2 {
		t.Errorf("expected total daily count 2, got %d", got)
	}
	if got := a.DailyCount(testMotion, testutil.Day(1, 0, 5)); got != 0 {
		t.Errorf("next day count should read 0, got %d", got)
	}
}

func TestActivityScoreNeutralWithoutBaseline(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	if got := a.ActivityScore(testutil.Day(0, 12, 0)); got != 0 {
		t.Errorf("no patterns at all should score 0, got %f", got)
	}

	// A pattern exists but the probed slot has no baseline.
	a.RecordStateChange(testMotion, testutil.Day(0, 8, 0))
	if got := a.ActivityScore(testutil.Day(0, 22, 0)); got != 50 {
		t.Errorf("no baseline for slot should score neutral 50, got %f", got)
	}
}

func TestLastActivityTime(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	if _, ok := a.LastActivityTime(); ok {
		t.Error("no activity should report ok=false")
	}

	first := testutil.Day(0, 8, 0)
	second := testutil.Day(0, 9, 30)
	a.RecordStateChange(testMotion, first)
	a.RecordStateChange("light.hallway", second)

	got, ok := a.LastActivityTime()
	if !ok || !got.Equal(second) {
		t.Errorf("expected last activity %v, got %v (ok=%v)", second, got, ok)
	}
}

func TestCurrentIntervalActivityRollsOver(t *testing.T) {
	a := NewPatternAnalyzer(2.0, 7)

	a.RecordStateChange(testMotion, testutil.Day(0, 9, 2))
	a.RecordStateChange(testMotion, testutil.Day(0, 9, 7))

	within := a.CurrentIntervalActivity(testutil.Day(0, 9, 10))
	if within[testMotion] != 2 {
		t.Errorf("expected 2 in live interval, got %d", within[testMotion])
	}

	after := a.CurrentIntervalActivity(testutil.Day(0, 9, 20))
	if len(after) != 0 {
		t.Errorf("rolled-over interval should read empty, got %v", after)
	}
}
