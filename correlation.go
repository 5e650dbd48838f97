package haven

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// CrossSensorPattern tracks pairwise co-occurrence statistics for two
// entities, keyed by the alphabetically first entity as A. Counters grow for
// the lifetime of the pattern; there is no decay.
type CrossSensorPattern struct {
	EntityA             string  `json:"entity_a"`
	EntityB             string  `json:"entity_b"`
	CoOccurrenceCount   int     `json:"co_occurrence_count"`
	AvgTimeDeltaSeconds float64 `json:"avg_time_delta_seconds"`
	ABeforeBCount       int     `json:"a_before_b_count"`
	BBeforeACount       int     `json:"b_before_a_count"`
}

// CorrelationStrength scores the pattern in [0, 1]: ordering consistency
// scaled by a log-saturating count factor so high-frequency pairs do not
// dominate purely on volume.
func (p *CrossSensorPattern) CorrelationStrength() float64 {
	if p.CoOccurrenceCount == 0 {
		return 0
	}
	total := p.ABeforeBCount + p.BBeforeACount
	if total == 0 {
		return 0
	}
	consistency := float64(max(p.ABeforeBCount, p.BBeforeACount)) / float64(total)
	countFactor := math.Min(1, math.Log1p(float64(p.CoOccurrenceCount))/5)
	return consistency * countFactor
}

// UsualOrder renders the pattern's dominant temporal ordering, e.g.
// "binary_sensor.hall → binary_sensor.kitchen".
func (p *CrossSensorPattern) UsualOrder() string {
	if p.ABeforeBCount > p.BBeforeACount {
		return fmt.Sprintf("%s → %s", p.EntityA, p.EntityB)
	}
	return fmt.Sprintf("%s → %s", p.EntityB, p.EntityA)
}

// CrossSensorSummary is the reporting shape for a learned correlation.
type CrossSensorSummary struct {
	Entities        [2]string
	Strength        float64
	CoOccurrences   int
	AvgDelaySeconds float64
	UsualOrder      string
}

// Strong-pattern cutoffs for cross-sensor anomaly checks.
const (
	strongPatternMinStrength    = 0.5
	strongPatternMinOccurrences = 10
)

func crossSensorKey(a, b string) string {
	return a + "|" + b
}

// CrossSensorMiner maintains a sliding window of recent events and the
// pairwise co-occurrence patterns mined from it. Not safe for concurrent
// use; the owning analyzer serializes access.
type CrossSensorMiner struct {
	window   time.Duration
	recent   []StateChangeEvent
	patterns map[string]*CrossSensorPattern
}

// NewCrossSensorMiner creates a miner with the given co-occurrence window.
func NewCrossSensorMiner(window time.Duration) *CrossSensorMiner {
	return &CrossSensorMiner{
		window:   window,
		patterns: make(map[string]*CrossSensorPattern),
	}
}

// Window returns the configured co-occurrence window.
func (m *CrossSensorMiner) Window() time.Duration {
	return m.window
}

// Patterns returns the mined patterns keyed by "entityA|entityB".
func (m *CrossSensorMiner) Patterns() map[string]*CrossSensorPattern {
	return m.patterns
}

// Observe folds one event into the miner: every other-entity event still in
// the window updates the pair's pattern. Cost is O(window size), not
// O(total events); the window is pruned on every observation.
func (m *CrossSensorMiner) Observe(ev StateChangeEvent) {
	cutoff := ev.Timestamp.Add(-m.window)
	kept := m.recent[:0]
	for _, e := range m.recent {
		if !e.Timestamp.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	m.recent = kept

	for _, recent := range m.recent {
		if recent.EntityID == ev.EntityID {
			continue
		}

		a, b := recent.EntityID, ev.EntityID
		if a > b {
			a, b = b, a
		}
		key := crossSensorKey(a, b)

		p, ok := m.patterns[key]
		if !ok {
			p = &CrossSensorPattern{EntityA: a, EntityB: b}
			m.patterns[key] = p
		}

		p.CoOccurrenceCount++

		delta := ev.Timestamp.Sub(recent.Timestamp).Seconds()
		n := float64(p.CoOccurrenceCount)
		p.AvgTimeDeltaSeconds += (math.Abs(delta) - p.AvgTimeDeltaSeconds) / n

		if recent.EntityID == a {
			p.ABeforeBCount++
		} else {
			p.BBeforeACount++
		}
	}

	m.recent = append(m.recent, ev)
}

// StrongPatterns returns patterns at or above the strength threshold,
// strongest first.
func (m *CrossSensorMiner) StrongPatterns(minStrength float64) []CrossSensorSummary {
	var out []CrossSensorSummary
	for _, p := range m.patterns {
		strength := p.CorrelationStrength()
		if strength < minStrength {
			continue
		}
		out = append(out, CrossSensorSummary{
			Entities:        [2]string{p.EntityA, p.EntityB},
			Strength:        math.Round(strength*100) / 100,
			CoOccurrences:   p.CoOccurrenceCount,
			AvgDelaySeconds: math.Round(p.AvgTimeDeltaSeconds*10) / 10,
			UsualOrder:      p.UsualOrder(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Strength > out[j].Strength
	})
	return out
}

// CheckAnomalies flags strong correlations where one side changed recently
// but the other did not follow within twice the learned average gap. The
// reverse direction is flagged only when the absent entity historically
// precedes the one that changed.
func (m *CrossSensorMiner) CheckAnomalies(recentEvents []StateChangeEvent, checkWindow time.Duration, now time.Time) []MLAnomalyResult {
	if checkWindow <= 0 {
		checkWindow = m.window
	}

	var strong []*CrossSensorPattern
	for _, p := range m.patterns {
		if p.CorrelationStrength() > strongPatternMinStrength && p.CoOccurrenceCount >= strongPatternMinOccurrences {
			strong = append(strong, p)
		}
	}
	if len(strong) == 0 {
		return nil
	}
	sort.SliceStable(strong, func(i, j int) bool {
		return crossSensorKey(strong[i].EntityA, strong[i].EntityB) < crossSensorKey(strong[j].EntityA, strong[j].EntityB)
	})

	lastChange := make(map[string]time.Time)
	for _, ev := range recentEvents {
		if !ev.Timestamp.Before(now.Add(-checkWindow)) {
			lastChange[ev.EntityID] = ev.Timestamp
		}
	}

	var anomalies []MLAnomalyResult
	for _, p := range strong {
		aTime, aChanged := lastChange[p.EntityA]
		bTime, bChanged := lastChange[p.EntityB]
		expected := time.Duration(p.AvgTimeDeltaSeconds * 2 * float64(time.Second))

		switch {
		case aChanged && !bChanged:
			if now.Sub(aTime) > expected {
				anomalies = append(anomalies, MLAnomalyResult{
					EntityID:     p.EntityB,
					AnomalyScore: p.CorrelationStrength(),
					Type:         MLAnomalyMissingCorrelation,
					Description: fmt.Sprintf(
						"Expected %s to change after %s (usually within %.0fs, correlation: %.2f)",
						p.EntityB, p.EntityA, p.AvgTimeDeltaSeconds, p.CorrelationStrength()),
					Timestamp:       now,
					RelatedEntities: []string{p.EntityA},
				})
			}

		case bChanged && !aChanged:
			if now.Sub(bTime) > expected && p.ABeforeBCount > p.BBeforeACount {
				anomalies = append(anomalies, MLAnomalyResult{
					EntityID:     p.EntityA,
					AnomalyScore: p.CorrelationStrength(),
					Type:         MLAnomalyMissingCorrelation,
					Description: fmt.Sprintf(
						"Expected %s to change before %s (usually precedes by %.0fs, correlation: %.2f)",
						p.EntityA, p.EntityB, p.AvgTimeDeltaSeconds, p.CorrelationStrength()),
					Timestamp:       now,
					RelatedEntities: []string{p.EntityB},
				})
			}
		}
	}

	return anomalies
}
