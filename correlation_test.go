package haven

import (
	"math"
	"testing"
	"time"

	"github.com/havenwatch/haven/internal/testutil"
)

const (
	testHall    = "binary_sensor.hall_motion"
	testBedroom = "binary_sensor.bedroom_motion"
)

func TestCorrelationStrength(t *testing.T) {
	empty := &CrossSensorPattern{EntityA: testBedroom, EntityB: testHall}
	if got := empty.CorrelationStrength(); got != 0 {
		t.Errorf("empty pattern should score 0, got %f", got)
	}

	// At 150 co-occurrences the count factor saturates at 1, so strength
	// equals the ordering consistency exactly.
	saturated := &CrossSensorPattern{
		EntityA:           testBedroom,
		EntityB:           testHall,
		CoOccurrenceCount: 150,
		ABeforeBCount:     120,
		BBeforeACount:     30,
	}
	if got := saturated.CorrelationStrength(); got != 0.8 {
		t.Errorf("saturated pattern strength: got %f, want 0.8", got)
	}

	// Below saturation the log factor discounts low-volume pairs.
	sparse := &CrossSensorPattern{
		EntityA:           testBedroom,
		EntityB:           testHall,
		CoOccurrenceCount: 10,
		ABeforeBCount:     10,
	}
	want := math.Log1p(10) / 5
	if got := sparse.CorrelationStrength(); math.Abs(got-want) > 1e-12 {
		t.Errorf("sparse pattern strength: got %f, want %f", got, want)
	}
}

func TestUsualOrder(t *testing.T) {
	p := &CrossSensorPattern{
		EntityA:       testBedroom,
		EntityB:       testHall,
		ABeforeBCount: 12,
		BBeforeACount: 3,
	}
	if got := p.UsualOrder(); got != testBedroom+" → "+testHall {
		t.Errorf("unexpected order: %q", got)
	}

	p.BBeforeACount = 20
	if got := p.UsualOrder(); got != testHall+" → "+testBedroom {
		t.Errorf("unexpected reversed order: %q", got)
	}
}

func TestMinerLearnsOrderedPairs(t *testing.T) {
	m := NewCrossSensorMiner(5 * time.Minute)

	// Twenty mornings of bedroom motion followed by hall motion 30s later,
	// each pair well outside the window of the previous one.
	for day := 0; day < 20; day++ {
		base := testutil.Day(day, 7, 0)
		m.Observe(featureEvent(testBedroom, base))
		m.Observe(featureEvent(testHall, base.Add(30*time.Second)))
	}

	p, ok := m.Patterns()[crossSensorKey(testBedroom, testHall)]
	if !ok {
		t.Fatal("expected a learned bedroom/hall pattern")
	}
	if p.CoOccurrenceCount != 20 {
		t.Errorf("co-occurrences: got %d, want 20", p.CoOccurrenceCount)
	}
	if p.ABeforeBCount != 20 || p.BBeforeACount != 0 {
		t.Errorf("ordering counts: got %d/%d, want 20/0", p.ABeforeBCount, p.BBeforeACount)
	}
	if math.Abs(p.AvgTimeDeltaSeconds-30) > 1e-9 {
		t.Errorf("average delta: got %f, want 30", p.AvgTimeDeltaSeconds)
	}

	strong := m.StrongPatterns(0.5)
	if len(strong) != 1 {
		t.Fatalf("expected 1 strong pattern, got %d", len(strong))
	}
	s := strong[0]
	if s.Entities != [2]string{testBedroom, testHall} {
		t.Errorf("unexpected entities: %v", s.Entities)
	}
	if s.Strength != 0.61 {
		t.Errorf("rounded strength: got %f, want 0.61", s.Strength)
	}
	if s.AvgDelaySeconds != 30 {
		t.Errorf("rounded delay: got %f, want 30", s.AvgDelaySeconds)
	}
	if s.UsualOrder != testBedroom+" → "+testHall {
		t.Errorf("unexpected usual order: %q", s.UsualOrder)
	}
}

func TestMinerIncrementalAverageDelta(t *testing.T) {
	m := NewCrossSensorMiner(5 * time.Minute)

	m.Observe(featureEvent(testBedroom, testutil.Day(0, 7, 0)))
	m.Observe(featureEvent(testHall, testutil.Day(0, 7, 0).Add(10*time.Second)))

	m.Observe(featureEvent(testBedroom, testutil.Day(1, 7, 0)))
	m.Observe(featureEvent(testHall, testutil.Day(1, 7, 0).Add(30*time.Second)))

	p := m.Patterns()[crossSensorKey(testBedroom, testHall)]
	if p == nil {
		t.Fatal("expected a learned pattern")
	}
	if math.Abs(p.AvgTimeDeltaSeconds-20) > 1e-9 {
		t.Errorf("running average of 10s and 30s should be 20, got %f", p.AvgTimeDeltaSeconds)
	}
}

func TestMinerIgnoresDistantAndSelfPairs(t *testing.T) {
	m := NewCrossSensorMiner(5 * time.Minute)

	// Same entity twice: no self-pairing.
	m.Observe(featureEvent(testHall, testutil.Day(0, 7, 0)))
	m.Observe(featureEvent(testHall, testutil.Day(0, 7, 1)))

	// Two entities further apart than the window: no pairing.
	m.Observe(featureEvent(testBedroom, testutil.Day(0, 9, 0)))
	m.Observe(featureEvent(testHall, testutil.Day(0, 9, 10)))

	if n := len(m.Patterns()); n != 0 {
		t.Errorf("expected no patterns, got %d", n)
	}
}

func TestCheckAnomaliesMissingFollower(t *testing.T) {
	m := NewCrossSensorMiner(5 * time.Minute)
	m.patterns[crossSensorKey(testBedroom, testHall)] = &CrossSensorPattern{
		EntityA:             testBedroom,
		EntityB:             testHall,
		CoOccurrenceCount:   150,
		ABeforeBCount:       120,
		BBeforeACount:       30,
		AvgTimeDeltaSeconds: 30,
	}

	now := testutil.Day(30, 8, 0)

	// Bedroom changed two minutes ago; hall silent past twice the usual gap.
	recent := []StateChangeEvent{
		featureEvent(testBedroom, now.Add(-2*time.Minute)),
	}
	anomalies := m.CheckAnomalies(recent, 5*time.Minute, now)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	a := anomalies[0]
	if a.EntityID != testHall {
		t.Errorf("anomaly should name the missing follower, got %q", a.EntityID)
	}
	if a.Type != MLAnomalyMissingCorrelation {
		t.Errorf("unexpected type %q", a.Type)
	}
	if a.AnomalyScore != 0.8 {
		t.Errorf("score should be the correlation strength, got %f", a.AnomalyScore)
	}
	if len(a.RelatedEntities) != 1 || a.RelatedEntities[0] != testBedroom {
		t.Errorf("unexpected related entities %v", a.RelatedEntities)
	}

	// Inside twice the usual gap there is nothing to flag yet.
	recent = []StateChangeEvent{
		featureEvent(testBedroom, now.Add(-30*time.Second)),
	}
	if got := m.CheckAnomalies(recent, 5*time.Minute, now); len(got) != 0 {
		t.Errorf("expected no anomaly within the grace period, got %d", len(got))
	}

	// Both sides changed: the correlation held.
	recent = []StateChangeEvent{
		featureEvent(testBedroom, now.Add(-2*time.Minute)),
		featureEvent(testHall, now.Add(-90*time.Second)),
	}
	if got := m.CheckAnomalies(recent, 5*time.Minute, now); len(got) != 0 {
		t.Errorf("expected no anomaly when both sides changed, got %d", len(got))
	}
}

func TestCheckAnomaliesMissingPredecessor(t *testing.T) {
	m := NewCrossSensorMiner(5 * time.Minute)
	m.patterns[crossSensorKey(testBedroom, testHall)] = &CrossSensorPattern{
		EntityA:             testBedroom,
		EntityB:             testHall,
		CoOccurrenceCount:   150,
		ABeforeBCount:       120,
		BBeforeACount:       30,
		AvgTimeDeltaSeconds: 30,
	}

	now := testutil.Day(30, 8, 0)

	// Hall changed without the bedroom motion that usually precedes it.
	recent := []StateChangeEvent{
		featureEvent(testHall, now.Add(-2*time.Minute)),
	}
	anomalies := m.CheckAnomalies(recent, 5*time.Minute, now)
	if len(anomalies) != 1 {
		t.Fatalf("expected 1 anomaly, got %d", len(anomalies))
	}
	if anomalies[0].EntityID != testBedroom {
		t.Errorf("anomaly should name the missing predecessor, got %q", anomalies[0].EntityID)
	}

	// When the dominant order is the other way round, B changing alone is
	// not suspicious.
	m.patterns[crossSensorKey(testBedroom, testHall)].ABeforeBCount = 30
	m.patterns[crossSensorKey(testBedroom, testHall)].BBeforeACount = 120
	if got := m.CheckAnomalies(recent, 5*time.Minute, now); len(got) != 0 {
		t.Errorf("expected no anomaly without a precedence pattern, got %d", len(got))
	}
}
