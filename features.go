package haven

import (
	"math"
	"time"
)

// FeatureDimensions is the length of the engineered per-event feature vector.
const FeatureDimensions = 7

// Caps applied before normalizing the gap and trailing-count features.
const (
	maxTimeSinceLastSeconds = 86400 // 24h
	maxTrailingHourCount    = 20
)

// featureState carries the running context feature extraction needs: last
// change time per entity, trailing-hour event times per entity, and a stable
// index per entity. It is rebuilt from scratch on model replay so extraction
// is deterministic over the stored event order.
type featureState struct {
	lastChange  map[string]time.Time
	recentTimes map[string][]time.Time
	indices     map[string]int
}

func newFeatureState() *featureState {
	return &featureState{
		lastChange:  make(map[string]time.Time),
		recentTimes: make(map[string][]time.Time),
		indices:     make(map[string]int),
	}
}

// index returns the entity's stable index, assigning the next one on first
// sight.
func (s *featureState) index(entityID string) int {
	idx, ok := s.indices[entityID]
	if !ok {
		idx = len(s.indices)
		s.indices[entityID] = idx
	}
	return idx
}

// vector extracts the normalized feature vector for an event against the
// state as it was before the event.
func (s *featureState) vector(ev StateChangeEvent) []float64 {
	ts := ev.Timestamp

	hour := float64(ts.Hour()) / 23
	minuteBucket := float64((ts.Minute()%60)/15) / 3
	weekday := float64(weekdayIndex(ts)) / 6

	var weekend float64
	if weekdayIndex(ts) >= 5 {
		weekend = 1
	}

	var sinceLast float64
	if last, ok := s.lastChange[ev.EntityID]; ok && last.Before(ts) {
		sinceLast = ts.Sub(last).Seconds()
	}
	sinceLast = math.Min(sinceLast, maxTimeSinceLastSeconds) / maxTimeSinceLastSeconds

	hourAgo := ts.Add(-time.Hour)
	var trailing int
	for _, t := range s.recentTimes[ev.EntityID] {
		if !t.Before(hourAgo) {
			trailing++
		}
	}
	trailingNorm := math.Min(float64(trailing), maxTrailingHourCount) / maxTrailingHourCount

	idx := s.index(ev.EntityID)
	var idxNorm float64
	if n := len(s.indices); n > 1 {
		idxNorm = float64(idx) / float64(n-1)
	}

	return []float64{hour, minuteBucket, weekday, weekend, sinceLast, trailingNorm, idxNorm}
}

// observe updates the running context after an event has been scored.
func (s *featureState) observe(ev StateChangeEvent) {
	s.lastChange[ev.EntityID] = ev.Timestamp

	hourAgo := ev.Timestamp.Add(-time.Hour)
	times := s.recentTimes[ev.EntityID]
	kept := times[:0]
	for _, t := range times {
		if !t.Before(hourAgo) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, ev.Timestamp)
	// The trailing-hour feature is capped; no need to keep more history.
	if len(kept) > maxTrailingHourCount+1 {
		kept = kept[len(kept)-maxTrailingHourCount-1:]
	}
	s.recentTimes[ev.EntityID] = kept
}
