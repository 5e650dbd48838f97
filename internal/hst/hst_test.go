package hst

import (
	"math/rand"
	"testing"
)

func probeVector(dims int, value float64) []float64 {
	v := make([]float64, dims)
	for i := range v {
		v[i] = value
	}
	return v
}

func TestFreshForestScoresEverythingAnomalous(t *testing.T) {
	f := New(DefaultConfig(4))
	if got := f.Score(probeVector(4, 0.5)); got != 1.0 {
		t.Errorf("forest with no reference mass should score 1.0, got %f", got)
	}
}

func TestScoreStaysInUnitRange(t *testing.T) {
	f := New(DefaultConfig(4))
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		x := []float64{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
		f.Update(x)
		if s := f.Score(x); s < 0 || s > 1 {
			t.Fatalf("score out of range after %d updates: %f", i+1, s)
		}
	}
}

func TestRepeatedPointScoresNormal(t *testing.T) {
	f := New(DefaultConfig(4))
	v := probeVector(4, 0.3)

	// Four full tumbling windows of the same point.
	for i := 0; i < 200; i++ {
		f.Update(v)
	}

	if got := f.Score(v); got != 0 {
		t.Errorf("a fully established point should score 0, got %f", got)
	}

	far := probeVector(4, 0.9)
	if f.Score(far) < f.Score(v) {
		t.Error("an unseen point must not score below the established one")
	}
}

func TestWindowTumbling(t *testing.T) {
	cfg := DefaultConfig(2)
	cfg.WindowSize = 10
	f := New(cfg)
	v := []float64{0.4, 0.6}

	// Nine updates: latest window not yet full, no reference mass.
	for i := 0; i < 9; i++ {
		f.Update(v)
	}
	if got := f.Score(v); got != 1.0 {
		t.Errorf("before the first tumble the score should be 1.0, got %f", got)
	}

	// Tenth update tumbles the window into reference mass.
	f.Update(v)
	if got := f.Score(v); got != 0 {
		t.Errorf("after the first tumble the point should score 0, got %f", got)
	}
	if f.Observed() != 10 {
		t.Errorf("expected 10 observed, got %d", f.Observed())
	}
}

func TestDeterministicConstructionAndReplay(t *testing.T) {
	cfg := DefaultConfig(3)
	a := New(cfg)
	b := New(cfg)

	rng := rand.New(rand.NewSource(11))
	points := make([][]float64, 120)
	for i := range points {
		points[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		a.Update(points[i])
		b.Update(points[i])
	}

	probe := []float64{0.2, 0.8, 0.5}
	if a.Score(probe) != b.Score(probe) {
		t.Error("identical forests fed identically must score identically")
	}

	// Reset and replay reproduces the same state.
	a.Reset()
	if a.Observed() != 0 {
		t.Errorf("reset should clear the observation count, got %d", a.Observed())
	}
	if got := a.Score(probe); got != 1.0 {
		t.Errorf("reset forest should score 1.0, got %f", got)
	}
	for _, p := range points {
		a.Update(p)
	}
	if a.Score(probe) != b.Score(probe) {
		t.Error("reset-and-replay must reproduce the original score")
	}
}
