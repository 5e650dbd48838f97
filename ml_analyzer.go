package haven

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/havenwatch/haven/internal/hst"
)

// MinSamplesForML is the minimum number of recorded events before the
// streaming model's scores are considered meaningful.
const MinSamplesForML = 100

// MLAnomalyType classifies an ML-detected anomaly.
type MLAnomalyType string

const (
	// MLAnomalyStreamingOutlier is a point the online model scores as isolated.
	MLAnomalyStreamingOutlier MLAnomalyType = "streaming_outlier"
	// MLAnomalyMissingCorrelation is an entity that failed to follow a
	// strongly correlated partner.
	MLAnomalyMissingCorrelation MLAnomalyType = "missing_correlation"
	// MLAnomalyUnexpectedCorrelation is a co-occurrence outside any learned
	// pattern. Declared for the result taxonomy; no current check emits it.
	MLAnomalyUnexpectedCorrelation MLAnomalyType = "unexpected_correlation"
)

// MLAnomalyResult is one anomaly from the streaming model or the
// cross-sensor miner. EntityID is empty for purely cross-sensor results.
type MLAnomalyResult struct {
	EntityID        string
	AnomalyScore    float64 // [0,1], higher = more anomalous
	Type            MLAnomalyType
	Description     string
	Timestamp       time.Time
	RelatedEntities []string
}

// MLEngine is the streaming ML surface the coordinator drives. A no-op
// implementation stands in when the ML subsystem is disabled, so coordinator
// logic is identical either way.
type MLEngine interface {
	// RecordEvent appends an event, updates correlation mining and feeds the
	// online model.
	RecordEvent(ev StateChangeEvent)

	// LogEvent appends an event to the stored log without updating the
	// model or the miner. Used while detection is snoozed so history stays
	// complete for the next replay.
	LogEvent(ev StateChangeEvent)

	// FirstEventTime returns the timestamp of the oldest logged event.
	FirstEventTime() (time.Time, bool)

	// IsTrained reports whether enough samples have been processed for
	// scores to be meaningful.
	IsTrained() bool

	// SampleCount returns the number of events in the stored log.
	SampleCount() int

	// LastWarmup returns when the model state was last rebuilt by replay.
	LastWarmup() (time.Time, bool)

	// Train rebuilds the online model by replaying the stored event log in
	// order. Returns false when there are not enough samples.
	Train(now time.Time) bool

	// CheckAnomaly scores one event; nil when not anomalous or not trained.
	CheckAnomaly(ev StateChangeEvent) *MLAnomalyResult

	// CheckCrossSensorAnomalies runs the missing-correlation checks.
	CheckCrossSensorAnomalies(recent []StateChangeEvent, now time.Time) []MLAnomalyResult

	// StrongPatterns lists learned correlations at or above minStrength.
	StrongPatterns(minStrength float64) []CrossSensorSummary

	// PruneOldEvents drops events older than maxAgeDays from the log only;
	// learned model state and counters are untouched.
	PruneOldEvents(maxAgeDays int, now time.Time) int

	// Snapshot serializes the engine for persistence.
	Snapshot() *MLDocument
}

// MLAvailable reports whether the streaming ML engine is usable in this
// build. The model is pure Go so this is always true; the capability flag
// exists so composing applications can branch once at startup and fall back
// to the no-op engine uniformly.
func MLAvailable() bool { return true }

// MLPatternAnalyzer is the streaming ML anomaly detector: a bounded event
// log, an online half-space-trees model over engineered features, and a
// cross-sensor correlation miner.
type MLPatternAnalyzer struct {
	mu sync.Mutex

	contamination float64
	crossWindow   time.Duration

	events []StateChangeEvent
	model  *hst.Forest
	fs     *featureState
	miner  *CrossSensorMiner

	samplesProcessed  int
	becameEffectiveAt time.Time
	lastWarmup        time.Time
}

var _ MLEngine = (*MLPatternAnalyzer)(nil)

// NewMLPatternAnalyzer creates an engine with the given expected anomaly
// rate and cross-sensor co-occurrence window.
func NewMLPatternAnalyzer(contamination float64, crossSensorWindow time.Duration) *MLPatternAnalyzer {
	return &MLPatternAnalyzer{
		contamination: contamination,
		crossWindow:   crossSensorWindow,
		model:         hst.New(hst.DefaultConfig(FeatureDimensions)),
		fs:            newFeatureState(),
		miner:         NewCrossSensorMiner(crossSensorWindow),
	}
}

// Contamination returns the configured expected anomaly rate.
func (m *MLPatternAnalyzer) Contamination() float64 {
	return m.contamination
}

// RecordEvent appends the event to the log, updates the correlation miner,
// and feeds the event's feature vector to the online model.
func (m *MLPatternAnalyzer) RecordEvent(ev StateChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, ev)
	m.miner.Observe(ev)

	vec := m.fs.vector(ev)
	m.fs.observe(ev)
	m.model.Update(vec)

	m.samplesProcessed++
	if m.samplesProcessed >= MinSamplesForML && m.becameEffectiveAt.IsZero() {
		m.becameEffectiveAt = ev.Timestamp
	}
}

// LogEvent appends the event to the log only. The miner, the feature
// state and the online model are untouched until the next Train replay.
func (m *MLPatternAnalyzer) LogEvent(ev StateChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
}

// FirstEventTime returns the timestamp of the oldest logged event.
func (m *MLPatternAnalyzer) FirstEventTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return time.Time{}, false
	}
	return m.events[0].Timestamp, true
}

// IsTrained reports whether the model has processed enough samples.
func (m *MLPatternAnalyzer) IsTrained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samplesProcessed >= MinSamplesForML
}

// SampleCount returns the number of events currently in the log.
func (m *MLPatternAnalyzer) SampleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// LastWarmup returns when the model was last rebuilt by replay.
func (m *MLPatternAnalyzer) LastWarmup() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastWarmup, !m.lastWarmup.IsZero()
}

// BecameEffectiveAt returns when the sample-count gate first opened.
func (m *MLPatternAnalyzer) BecameEffectiveAt() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.becameEffectiveAt, !m.becameEffectiveAt.IsZero()
}

// Train resets the online model and replays every stored event's features
// through it in original order. A freshly loaded engine has no online state;
// replay reconstructs it deterministically from the persisted log. Entity
// index assignments survive the reset so feature vectors stay comparable.
func (m *MLPatternAnalyzer) Train(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) < MinSamplesForML {
		return false
	}

	m.model.Reset()
	m.fs.lastChange = make(map[string]time.Time)
	m.fs.recentTimes = make(map[string][]time.Time)

	for _, ev := range m.events {
		vec := m.fs.vector(ev)
		m.fs.observe(ev)
		m.model.Update(vec)
	}

	// Replayed events count as processed, so an engine whose history arrived
	// through LogEvent alone still crosses the training gate.
	if m.samplesProcessed < len(m.events) {
		m.samplesProcessed = len(m.events)
	}
	if m.becameEffectiveAt.IsZero() {
		m.becameEffectiveAt = m.events[MinSamplesForML-1].Timestamp
	}

	m.lastWarmup = now
	return true
}

// CheckAnomaly scores one event against the online model. Only meaningful
// once trained; the detection threshold is 1 - contamination.
func (m *MLPatternAnalyzer) CheckAnomaly(ev StateChangeEvent) *MLAnomalyResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.samplesProcessed < MinSamplesForML {
		return nil
	}

	score := m.model.Score(m.fs.vector(ev))
	if score <= 1-m.contamination {
		return nil
	}

	return &MLAnomalyResult{
		EntityID:     ev.EntityID,
		AnomalyScore: score,
		Type:         MLAnomalyStreamingOutlier,
		Description: fmt.Sprintf(
			"Unusual activity pattern detected for %s (ML score: %.3f)", ev.EntityID, score),
		Timestamp: ev.Timestamp,
	}
}

// CheckCrossSensorAnomalies runs the missing-correlation checks over the
// caller's recent-event window.
func (m *MLPatternAnalyzer) CheckCrossSensorAnomalies(recent []StateChangeEvent, now time.Time) []MLAnomalyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.miner.CheckAnomalies(recent, m.crossWindow, now)
}

// StrongPatterns lists learned correlations at or above minStrength.
func (m *MLPatternAnalyzer) StrongPatterns(minStrength float64) []CrossSensorSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.miner.StrongPatterns(minStrength)
}

// PruneOldEvents drops events older than maxAgeDays from the event log.
// Learned model state, patterns and counters are untouched.
func (m *MLPatternAnalyzer) PruneOldEvents(maxAgeDays int, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.AddDate(0, 0, -maxAgeDays)
	kept := m.events[:0]
	for _, ev := range m.events {
		if !ev.Timestamp.Before(cutoff) {
			kept = append(kept, ev)
		}
	}
	pruned := len(m.events) - len(kept)
	m.events = kept
	return pruned
}

// Snapshot serializes the engine state for persistence.
func (m *MLPatternAnalyzer) Snapshot() *MLDocument {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := &MLDocument{
		Events:                   append([]StateChangeEvent(nil), m.events...),
		CrossSensorPatterns:      make(map[string]CrossSensorPattern, len(m.miner.patterns)),
		SamplesProcessed:         m.samplesProcessed,
		Contamination:            m.contamination,
		CrossSensorWindowSeconds: int(m.crossWindow.Seconds()),
		EntityIndices:            make(map[string]int, len(m.fs.indices)),
	}
	for key, p := range m.miner.patterns {
		doc.CrossSensorPatterns[key] = *p
	}
	for id, idx := range m.fs.indices {
		doc.EntityIndices[id] = idx
	}
	if !m.becameEffectiveAt.IsZero() {
		t := m.becameEffectiveAt
		doc.BecameEffectiveAt = &t
	}
	if !m.lastWarmup.IsZero() {
		t := m.lastWarmup
		doc.LastWarmup = &t
	}
	return doc
}

// RestoreMLPatternAnalyzer rebuilds an engine from a persisted document.
// Configured contamination and window take precedence over stored values
// when non-zero. The online model is left empty; callers replay via Train.
func RestoreMLPatternAnalyzer(doc *MLDocument, contamination float64, crossSensorWindow time.Duration) *MLPatternAnalyzer {
	if contamination <= 0 {
		contamination = doc.Contamination
	}
	if crossSensorWindow <= 0 {
		crossSensorWindow = time.Duration(doc.CrossSensorWindowSeconds) * time.Second
	}

	m := NewMLPatternAnalyzer(contamination, crossSensorWindow)

	m.events = append(m.events, doc.Events...)
	sort.SliceStable(m.events, func(i, j int) bool {
		return m.events[i].Timestamp.Before(m.events[j].Timestamp)
	})

	for key, p := range doc.CrossSensorPatterns {
		cp := p
		m.miner.patterns[key] = &cp
	}
	for id, idx := range doc.EntityIndices {
		m.fs.indices[id] = idx
	}
	for _, ev := range m.events {
		m.fs.lastChange[ev.EntityID] = ev.Timestamp
	}

	m.samplesProcessed = doc.SamplesProcessed
	if doc.BecameEffectiveAt != nil {
		m.becameEffectiveAt = *doc.BecameEffectiveAt
	}
	if doc.LastWarmup != nil {
		m.lastWarmup = *doc.LastWarmup
	}
	return m
}

// NoopMLEngine satisfies MLEngine when the ML subsystem is disabled. Every
// operation is a cheap no-op; statistical detection is unaffected.
type NoopMLEngine struct{}

var _ MLEngine = NoopMLEngine{}

func (NoopMLEngine) RecordEvent(StateChangeEvent)            {}
func (NoopMLEngine) LogEvent(StateChangeEvent)               {}
func (NoopMLEngine) FirstEventTime() (time.Time, bool)       { return time.Time{}, false }
func (NoopMLEngine) IsTrained() bool                         { return false }
func (NoopMLEngine) SampleCount() int                        { return 0 }
func (NoopMLEngine) LastWarmup() (time.Time, bool)           { return time.Time{}, false }
func (NoopMLEngine) Train(time.Time) bool                    { return false }
func (NoopMLEngine) CheckAnomaly(StateChangeEvent) *MLAnomalyResult {
	return nil
}
func (NoopMLEngine) CheckCrossSensorAnomalies([]StateChangeEvent, time.Time) []MLAnomalyResult {
	return nil
}
func (NoopMLEngine) StrongPatterns(float64) []CrossSensorSummary { return nil }
func (NoopMLEngine) PruneOldEvents(int, time.Time) int           { return 0 }
func (NoopMLEngine) Snapshot() *MLDocument                       { return nil }
