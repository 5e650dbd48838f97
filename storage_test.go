package haven

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/havenwatch/haven/internal/testutil"
)

func seededStatisticalDocument() *StatisticalDocument {
	a := NewPatternAnalyzer(2.0, 7)
	for week := 0; week < 7; week++ {
		a.RecordStateChange(testMotion, testutil.Day(week*7, 8, 5))
	}

	snooze := testutil.Day(7, 12, 0)
	return &StatisticalDocument{
		Analyzer: *a.Snapshot(),
		Coordinator: CoordinatorDocument{
			LastNotificationType: "statistical",
			LastWelfareStatus:    "ok",
			HolidayMode:          true,
			SnoozeUntil:          &snooze,
		},
	}
}

func TestSnapshotStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir, _ := testutil.TempSnapshotDir(t)

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	// Absent documents load as nil without error.
	if doc, err := store.LoadStatistical(ctx); err != nil || doc != nil {
		t.Fatalf("absent statistical: got %+v, %v", doc, err)
	}
	if doc, err := store.LoadML(ctx); err != nil || doc != nil {
		t.Fatalf("absent ml: got %+v, %v", doc, err)
	}

	want := seededStatisticalDocument()
	if err := store.SaveStatistical(ctx, want); err != nil {
		t.Fatal(err)
	}

	got, err := store.LoadStatistical(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a statistical document")
	}
	if !got.Coordinator.HolidayMode {
		t.Error("holiday mode should survive the round trip")
	}
	if got.Coordinator.SnoozeUntil == nil || !got.Coordinator.SnoozeUntil.Equal(testutil.Day(7, 12, 0)) {
		t.Errorf("snooze time: got %v", got.Coordinator.SnoozeUntil)
	}
	if got.Analyzer.SensitivityThreshold != 2.0 {
		t.Errorf("threshold: got %f", got.Analyzer.SensitivityThreshold)
	}

	restored := RestorePatternAnalyzer(&got.Analyzer, 0, 0)
	p := restored.Pattern(testMotion)
	if p == nil {
		t.Fatal("expected a restored pattern")
	}
	if p.TotalObservations != 7 {
		t.Errorf("total observations: got %d", p.TotalObservations)
	}
	if got := p.Bucket(0, intervalIndex(testutil.Day(0, 8, 5))).Count; got != 7 {
		t.Errorf("bucket count: got %d", got)
	}
}

func TestSnapshotStoreMLDocument(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	// A nil document is the no-op engine's snapshot; saving it is a no-op.
	if err := store.SaveML(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if doc, err := store.LoadML(ctx); err != nil || doc != nil {
		t.Fatalf("nil save must not create a document: got %+v, %v", doc, err)
	}

	m := NewMLPatternAnalyzer(0.05, 5*time.Minute)
	for i := 0; i < 120; i++ {
		m.RecordEvent(featureEvent(testMotion, testutil.Day(0, 8, 0).Add(time.Duration(i)*time.Minute)))
	}
	if err := store.SaveML(ctx, m.Snapshot()); err != nil {
		t.Fatal(err)
	}

	doc, err := store.LoadML(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		t.Fatal("expected an ml document")
	}
	if len(doc.Events) != 120 || doc.SamplesProcessed != 120 {
		t.Errorf("events/samples: got %d/%d", len(doc.Events), doc.SamplesProcessed)
	}
	if doc.Contamination != 0.05 || doc.CrossSensorWindowSeconds != 300 {
		t.Errorf("settings: got %f/%d", doc.Contamination, doc.CrossSensorWindowSeconds)
	}
}

func TestSnapshotStoreCompressionAndEncryption(t *testing.T) {
	ctx := context.Background()

	enc, err := NewEncryptor("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	backend := NewMemoryBackend()
	store := NewSnapshotStore(backend, WithCompression(), WithEncryptor(enc))

	want := seededStatisticalDocument()
	if err := store.SaveStatistical(ctx, want); err != nil {
		t.Fatal(err)
	}

	// The stored blob must not be readable as plain JSON.
	raw, err := backend.Read(ctx, "statistical.json")
	if err != nil {
		t.Fatal(err)
	}
	if json.Valid(raw) {
		t.Error("encrypted snapshot should not be valid JSON at rest")
	}

	got, err := store.LoadStatistical(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Analyzer.SensitivityThreshold != want.Analyzer.SensitivityThreshold {
		t.Error("document did not survive the codec round trip")
	}

	// A store with the wrong password cannot decode the blob.
	wrong, err := NewEncryptor("hunter2")
	if err != nil {
		t.Fatal(err)
	}
	badStore := NewSnapshotStore(backend, WithCompression(), WithEncryptor(wrong))
	if _, err := badStore.LoadStatistical(ctx); err == nil {
		t.Error("expected a decrypt failure with the wrong password")
	}

	// A fresh encryptor with the same password can, since each blob carries
	// its own salt.
	again, err := NewEncryptor("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	sameStore := NewSnapshotStore(backend, WithCompression(), WithEncryptor(again))
	if _, err := sameStore.LoadStatistical(ctx); err != nil {
		t.Errorf("same password should decrypt across instances: %v", err)
	}
}

func TestDecodeLegacyStatisticalDocument(t *testing.T) {
	a := NewPatternAnalyzer(3.0, 14)
	a.RecordStateChange(testMotion, testutil.Day(0, 9, 0))

	legacy, err := json.Marshal(a.Snapshot())
	if err != nil {
		t.Fatal(err)
	}

	doc, err := DecodeStatisticalDocument(legacy)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Analyzer.SensitivityThreshold != 3.0 || doc.Analyzer.LearningPeriodDays != 14 {
		t.Errorf("legacy analyzer settings lost: %+v", doc.Analyzer)
	}
	if doc.Coordinator.HolidayMode || doc.Coordinator.SnoozeUntil != nil {
		t.Error("legacy documents have no coordinator state")
	}

	if _, err := DecodeStatisticalDocument([]byte("{not json")); err == nil {
		t.Error("expected an error for malformed data")
	}
}

func TestRestorePatternAnalyzerZeroFills(t *testing.T) {
	// A truncated document: one day, three intervals, plus an out-of-range
	// day key that must be ignored.
	doc := &AnalyzerDocument{
		Patterns: map[string]PatternDocument{
			testMotion: {
				DayBuckets: map[string][]TimeBucket{
					"2": {{Count: 4, Sum: 4, SumSquares: 4}, {}, {Count: 1, Sum: 1, SumSquares: 1}},
					"9": {{Count: 99}},
				},
				TotalObservations: 5,
			},
		},
	}

	a := RestorePatternAnalyzer(doc, 0, 0)
	if a.SensitivityThreshold() != 2.0 {
		t.Errorf("missing threshold should default to medium, got %f", a.SensitivityThreshold())
	}
	if a.LearningPeriodDays() != DefaultLearningPeriodDays {
		t.Errorf("missing learning period should default, got %d", a.LearningPeriodDays())
	}

	p := a.Pattern(testMotion)
	if p == nil {
		t.Fatal("expected a restored pattern")
	}
	if got := p.Bucket(2, 0).Count; got != 4 {
		t.Errorf("restored bucket count: got %d", got)
	}
	if got := p.Bucket(2, 95).Count; got != 0 {
		t.Errorf("short interval arrays should zero-fill, got %d", got)
	}
	if got := p.Bucket(6, 0).Count; got != 0 {
		t.Errorf("missing days should zero-fill, got %d", got)
	}

	// Overrides win over stored settings.
	doc.SensitivityThreshold = 1.0
	doc.LearningPeriodDays = 3
	b := RestorePatternAnalyzer(doc, 3.0, 21)
	if b.SensitivityThreshold() != 3.0 || b.LearningPeriodDays() != 21 {
		t.Errorf("overrides lost: %f/%d", b.SensitivityThreshold(), b.LearningPeriodDays())
	}
}

func TestFileBackendRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	dir, _ := testutil.TempSnapshotDir(t)

	backend, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := backend.Write(ctx, "../escape.json", []byte("{}")); err == nil {
		t.Error("expected traversal keys to be rejected")
	} else if !strings.Contains(err.Error(), "traversal") {
		t.Errorf("unexpected error: %v", err)
	}

	if _, err := backend.Read(ctx, "../../etc/passwd"); err == nil {
		t.Error("expected traversal reads to be rejected")
	}
}

func TestMemoryBackendIsolation(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	data := []byte(`{"k":1}`)
	if err := backend.Write(ctx, "statistical.json", data); err != nil {
		t.Fatal(err)
	}
	data[2] = 'x'

	got, err := backend.Read(ctx, "statistical.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"k":1}` {
		t.Errorf("stored blob should not alias caller memory, got %q", got)
	}

	ok, err := backend.Exists(ctx, "ml.json")
	if err != nil || ok {
		t.Errorf("exists on absent key: got %v, %v", ok, err)
	}
}
