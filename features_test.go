package haven

import (
	"testing"
	"time"

	"github.com/havenwatch/haven/internal/testutil"
)

func featureEvent(entityID string, ts time.Time) StateChangeEvent {
	return StateChangeEvent{
		EntityID:  entityID,
		Timestamp: ts,
		OldState:  StateSnapshot{State: "off"},
		NewState:  StateSnapshot{State: "on"},
	}
}

func TestFeatureVectorShapeAndRange(t *testing.T) {
	fs := newFeatureState()
	vec := fs.vector(featureEvent("binary_sensor.hall_motion", testutil.Day(0, 12, 30)))

	if len(vec) != FeatureDimensions {
		t.Fatalf("expected %d dimensions, got %d", FeatureDimensions, len(vec))
	}
	for i, v := range vec {
		if v < 0 || v > 1 {
			t.Errorf("dimension %d out of [0,1]: %f", i, v)
		}
	}
}

func TestFeatureVectorTimeComponents(t *testing.T) {
	fs := newFeatureState()

	// Saturday 12:30 relative to the Monday anchor.
	vec := fs.vector(featureEvent("binary_sensor.hall_motion", testutil.Day(5, 12, 30)))

	if got, want := vec[0], 12.0/23; got != want {
		t.Errorf("hour component: got %f, want %f", got, want)
	}
	if got, want := vec[1], 2.0/3; got != want {
		t.Errorf("minute bucket component: got %f, want %f", got, want)
	}
	if got, want := vec[2], 5.0/6; got != want {
		t.Errorf("weekday component: got %f, want %f", got, want)
	}
	if vec[3] != 1 {
		t.Errorf("Saturday should set the weekend flag, got %f", vec[3])
	}

	weekdayVec := fs.vector(featureEvent("binary_sensor.hall_motion", testutil.Day(2, 12, 30)))
	if weekdayVec[3] != 0 {
		t.Errorf("Wednesday should clear the weekend flag, got %f", weekdayVec[3])
	}
}

func TestFeatureTimeSinceLastChange(t *testing.T) {
	fs := newFeatureState()
	const entity = "binary_sensor.hall_motion"

	first := featureEvent(entity, testutil.Day(0, 8, 0))
	if got := fs.vector(first)[4]; got != 0 {
		t.Errorf("first event should have no gap, got %f", got)
	}
	fs.observe(first)

	hourLater := featureEvent(entity, testutil.Day(0, 9, 0))
	if got, want := fs.vector(hourLater)[4], 3600.0/86400; got != want {
		t.Errorf("one-hour gap: got %f, want %f", got, want)
	}
	fs.observe(hourLater)

	// Gaps beyond 24h are capped.
	twoDaysLater := featureEvent(entity, testutil.Day(2, 9, 0))
	if got := fs.vector(twoDaysLater)[4]; got != 1 {
		t.Errorf("48-hour gap should cap at 1, got %f", got)
	}
}

func TestFeatureTrailingHourCountCaps(t *testing.T) {
	fs := newFeatureState()
	const entity = "binary_sensor.hall_motion"

	for i := 0; i < 25; i++ {
		ev := featureEvent(entity, testutil.Day(0, 10, 0).Add(time.Duration(i)*time.Minute))
		fs.observe(ev)
	}

	probe := featureEvent(entity, testutil.Day(0, 10, 25))
	if got := fs.vector(probe)[5]; got != 1 {
		t.Errorf("25 events in the trailing hour should cap at 1, got %f", got)
	}

	// Events older than an hour drop out of the trailing count.
	quiet := featureEvent(entity, testutil.Day(0, 13, 0))
	if got := fs.vector(quiet)[5]; got != 0 {
		t.Errorf("trailing count should be empty after a quiet spell, got %f", got)
	}
}

func TestFeatureEntityIndicesAreStable(t *testing.T) {
	fs := newFeatureState()

	if idx := fs.index("binary_sensor.hall_motion"); idx != 0 {
		t.Errorf("first entity should get index 0, got %d", idx)
	}
	if idx := fs.index("binary_sensor.kitchen_motion"); idx != 1 {
		t.Errorf("second entity should get index 1, got %d", idx)
	}
	if idx := fs.index("binary_sensor.hall_motion"); idx != 0 {
		t.Errorf("index must be stable on revisit, got %d", idx)
	}

	// With two known entities the index feature spans the unit range.
	hall := fs.vector(featureEvent("binary_sensor.hall_motion", testutil.Day(0, 8, 0)))
	kitchen := fs.vector(featureEvent("binary_sensor.kitchen_motion", testutil.Day(0, 8, 0)))
	if hall[6] != 0 || kitchen[6] != 1 {
		t.Errorf("index components: hall=%f kitchen=%f", hall[6], kitchen[6])
	}
}
