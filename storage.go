package haven

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/snappy"
)

// Snapshot object keys within a backend.
const (
	statisticalSnapshotKey = "statistical.json"
	mlSnapshotKey          = "ml.json"
)

// PatternDocument is the persisted form of one EntityPattern. Day buckets
// are keyed "0".."6"; missing days or short interval arrays are zero-filled
// on restore, so the in-memory dimensions are always 7x96.
type PatternDocument struct {
	DayBuckets        map[string][]TimeBucket `json:"day_buckets"`
	TotalObservations int                     `json:"total_observations"`
	FirstObservation  *time.Time              `json:"first_observation"`
	LastObservation   *time.Time              `json:"last_observation"`
}

// AnalyzerDocument is the persisted form of the statistical analyzer.
type AnalyzerDocument struct {
	Patterns             map[string]PatternDocument `json:"patterns"`
	SensitivityThreshold float64                    `json:"sensitivity_threshold"`
	LearningPeriodDays   int                        `json:"learning_period_days"`
}

// CoordinatorDocument is the persisted control-plane state.
type CoordinatorDocument struct {
	LastNotificationTime *time.Time `json:"last_notification_time"`
	LastNotificationType string     `json:"last_notification_type"`
	LastWelfareStatus    string     `json:"last_welfare_status"`
	HolidayMode          bool       `json:"holiday_mode"`
	SnoozeUntil          *time.Time `json:"snooze_until"`
}

// StatisticalDocument bundles analyzer and coordinator state into the first
// persisted document.
type StatisticalDocument struct {
	Analyzer    AnalyzerDocument    `json:"analyzer"`
	Coordinator CoordinatorDocument `json:"coordinator"`
}

// MLDocument is the second persisted document: the ML engine's event log,
// mined correlations and counters.
type MLDocument struct {
	Events                   []StateChangeEvent            `json:"events"`
	CrossSensorPatterns      map[string]CrossSensorPattern `json:"cross_sensor_patterns"`
	SamplesProcessed         int                           `json:"samples_processed"`
	Contamination            float64                       `json:"contamination"`
	CrossSensorWindowSeconds int                           `json:"cross_sensor_window_seconds"`
	EntityIndices            map[string]int                `json:"entity_indices"`
	BecameEffectiveAt        *time.Time                    `json:"became_effective_at"`
	LastWarmup               *time.Time                    `json:"last_warmup"`
}

// DecodeStatisticalDocument parses a statistical document, accepting the
// legacy layout where the payload is a bare analyzer document without the
// analyzer/coordinator wrapper keys.
func DecodeStatisticalDocument(data []byte) (*StatisticalDocument, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode statistical snapshot: %w", err)
	}

	doc := &StatisticalDocument{}
	if _, ok := probe["analyzer"]; ok {
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decode statistical snapshot: %w", err)
		}
		return doc, nil
	}

	// Legacy document: the whole payload is the analyzer.
	if err := json.Unmarshal(data, &doc.Analyzer); err != nil {
		return nil, fmt.Errorf("decode legacy statistical snapshot: %w", err)
	}
	return doc, nil
}

// Snapshot serializes the analyzer's patterns and settings.
func (a *PatternAnalyzer) Snapshot() *AnalyzerDocument {
	a.mu.RLock()
	defer a.mu.RUnlock()

	doc := &AnalyzerDocument{
		Patterns:             make(map[string]PatternDocument, len(a.patterns)),
		SensitivityThreshold: a.sensitivityThreshold,
		LearningPeriodDays:   a.learningPeriodDays,
	}

	for entityID, p := range a.patterns {
		pd := PatternDocument{
			DayBuckets:        make(map[string][]TimeBucket, DaysPerWeek),
			TotalObservations: p.TotalObservations,
		}
		for day := 0; day < DaysPerWeek; day++ {
			buckets := make([]TimeBucket, IntervalsPerDay)
			copy(buckets, p.buckets[day][:])
			pd.DayBuckets[strconv.Itoa(day)] = buckets
		}
		if !p.FirstObservation.IsZero() {
			t := p.FirstObservation
			pd.FirstObservation = &t
		}
		if !p.LastObservation.IsZero() {
			t := p.LastObservation
			pd.LastObservation = &t
		}
		doc.Patterns[entityID] = pd
	}

	return doc
}

// RestorePatternAnalyzer rebuilds an analyzer from a persisted document.
// Non-zero overrides take precedence over stored settings. Missing buckets
// are zero-filled; a malformed document never aborts the restore.
func RestorePatternAnalyzer(doc *AnalyzerDocument, sensitivityThreshold float64, learningPeriodDays int) *PatternAnalyzer {
	if sensitivityThreshold <= 0 {
		sensitivityThreshold = doc.SensitivityThreshold
	}
	if sensitivityThreshold <= 0 {
		sensitivityThreshold = SensitivityMedium.Threshold()
	}
	if learningPeriodDays <= 0 {
		learningPeriodDays = doc.LearningPeriodDays
	}
	if learningPeriodDays <= 0 {
		learningPeriodDays = DefaultLearningPeriodDays
	}

	a := NewPatternAnalyzer(sensitivityThreshold, learningPeriodDays)

	for entityID, pd := range doc.Patterns {
		p := NewEntityPattern(entityID)
		for dayStr, buckets := range pd.DayBuckets {
			day, err := strconv.Atoi(dayStr)
			if err != nil || day < 0 || day >= DaysPerWeek {
				continue
			}
			for i := 0; i < len(buckets) && i < IntervalsPerDay; i++ {
				p.buckets[day][i] = buckets[i]
			}
		}
		p.TotalObservations = pd.TotalObservations
		if pd.FirstObservation != nil {
			p.FirstObservation = *pd.FirstObservation
		}
		if pd.LastObservation != nil {
			p.LastObservation = *pd.LastObservation
		}
		a.patterns[entityID] = p
	}

	return a
}

// BlobBackend stores snapshot documents by key. Implementations exist for
// the local filesystem, memory, SQLite and S3.
type BlobBackend interface {
	// Read returns the blob for a key, or ErrSnapshotNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Write stores a blob under a key, atomically from the reader's
	// perspective.
	Write(ctx context.Context, key string, data []byte) error

	// Exists checks whether a key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases any resources.
	Close() error
}

// Ensure interfaces are implemented.
var (
	_ BlobBackend = (*FileBackend)(nil)
	_ BlobBackend = (*MemoryBackend)(nil)
	_ BlobBackend = (*SQLiteBackend)(nil)
	_ BlobBackend = (*S3Backend)(nil)
)

// SnapshotStore persists the two snapshot documents through a BlobBackend,
// optionally compressing with snappy and encrypting at rest.
type SnapshotStore struct {
	backend   BlobBackend
	compress  bool
	encryptor *Encryptor
}

// StoreOption configures a SnapshotStore.
type StoreOption func(*SnapshotStore)

// WithCompression enables snappy compression of stored documents.
func WithCompression() StoreOption {
	return func(s *SnapshotStore) { s.compress = true }
}

// WithEncryptor enables encryption at rest for stored documents.
func WithEncryptor(enc *Encryptor) StoreOption {
	return func(s *SnapshotStore) { s.encryptor = enc }
}

// NewSnapshotStore wraps a backend with the snapshot document codec.
func NewSnapshotStore(backend BlobBackend, opts ...StoreOption) *SnapshotStore {
	s := &SnapshotStore{backend: backend}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFileStore creates a snapshot store over a directory.
func NewFileStore(dir string, opts ...StoreOption) (*SnapshotStore, error) {
	backend, err := NewFileBackend(dir)
	if err != nil {
		return nil, err
	}
	return NewSnapshotStore(backend, opts...), nil
}

// NewMemoryStore creates an in-memory snapshot store, useful for tests and
// ephemeral embedding.
func NewMemoryStore(opts ...StoreOption) *SnapshotStore {
	return NewSnapshotStore(NewMemoryBackend(), opts...)
}

func (s *SnapshotStore) encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if s.compress {
		data = snappy.Encode(nil, data)
	}
	if s.encryptor != nil {
		data, err = s.encryptor.Encrypt(data)
		if err != nil {
			return nil, fmt.Errorf("encrypt snapshot: %w", err)
		}
	}
	return data, nil
}

func (s *SnapshotStore) decode(data []byte) ([]byte, error) {
	var err error
	if s.encryptor != nil {
		data, err = s.encryptor.Decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("decrypt snapshot: %w", err)
		}
	}
	if s.compress {
		data, err = snappy.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
	}
	return data, nil
}

// SaveStatistical persists the statistical document.
func (s *SnapshotStore) SaveStatistical(ctx context.Context, doc *StatisticalDocument) error {
	data, err := s.encode(doc)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, statisticalSnapshotKey, data)
}

// LoadStatistical loads the statistical document; (nil, nil) when absent.
func (s *SnapshotStore) LoadStatistical(ctx context.Context) (*StatisticalDocument, error) {
	data, err := s.backend.Read(ctx, statisticalSnapshotKey)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	data, err = s.decode(data)
	if err != nil {
		return nil, err
	}
	return DecodeStatisticalDocument(data)
}

// SaveML persists the ML document. A nil document (no-op engine) is skipped.
func (s *SnapshotStore) SaveML(ctx context.Context, doc *MLDocument) error {
	if doc == nil {
		return nil
	}
	data, err := s.encode(doc)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, mlSnapshotKey, data)
}

// LoadML loads the ML document; (nil, nil) when absent.
func (s *SnapshotStore) LoadML(ctx context.Context) (*MLDocument, error) {
	data, err := s.backend.Read(ctx, mlSnapshotKey)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	data, err = s.decode(data)
	if err != nil {
		return nil, err
	}
	doc := &MLDocument{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("decode ml snapshot: %w", err)
	}
	return doc, nil
}

// Close closes the underlying backend.
func (s *SnapshotStore) Close() error {
	return s.backend.Close()
}
