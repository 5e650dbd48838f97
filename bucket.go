package haven

import (
	"fmt"
	"math"
	"time"
)

const (
	// IntervalsPerDay is the number of 15-minute intervals in one day.
	IntervalsPerDay = 96

	// MinutesPerInterval is the width of one interval in minutes.
	MinutesPerInterval = 15

	// DaysPerWeek is the number of weekday slots (Monday = 0).
	DaysPerWeek = 7
)

var dayNames = [DaysPerWeek]string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// intervalIndex maps a timestamp to its 15-minute interval of the day (0-95).
func intervalIndex(ts time.Time) int {
	return (ts.Hour()*60 + ts.Minute()) / MinutesPerInterval
}

// weekdayIndex maps a timestamp to its weekday with Monday as 0 and Sunday as 6.
func weekdayIndex(ts time.Time) int {
	return (int(ts.Weekday()) + 6) % 7
}

// intervalTimeString renders an interval index as "HH:MM".
func intervalTimeString(interval int) string {
	minutes := interval * MinutesPerInterval
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// TimeBucket accumulates observations for a single (weekday, interval) cell.
// Count, Sum and SumSquares only ever grow; the baseline is a lifetime
// histogram with no decay.
type TimeBucket struct {
	Count      int     `json:"count"`
	Sum        float64 `json:"sum"`
	SumSquares float64 `json:"sum_sq"`
}

// AddObservation folds one observation into the bucket.
func (b *TimeBucket) AddObservation(value float64) {
	b.Count++
	b.Sum += value
	b.SumSquares += value * value
}

// Mean returns the mean observed value, or 0 with no observations.
func (b *TimeBucket) Mean() float64 {
	if b.Count == 0 {
		return 0
	}
	return b.Sum / float64(b.Count)
}

// Variance returns the population variance, clamped at zero so floating-point
// cancellation can never produce a negative value.
func (b *TimeBucket) Variance() float64 {
	if b.Count == 0 {
		return 0
	}
	mean := b.Mean()
	return math.Max(0, b.SumSquares/float64(b.Count)-mean*mean)
}

// StdDev returns the standard deviation, or 0 with fewer than two observations.
func (b *TimeBucket) StdDev() float64 {
	if b.Count < 2 {
		return 0
	}
	return math.Sqrt(b.Variance())
}

// EntityPattern holds the learned activity baseline for one entity:
// 7 weekdays x 96 intervals of TimeBucket accumulators. The array dimensions
// are fixed regardless of what a persisted snapshot contained.
type EntityPattern struct {
	EntityID          string
	TotalObservations int
	FirstObservation  time.Time // zero if never observed
	LastObservation   time.Time // zero if never observed

	buckets [DaysPerWeek][IntervalsPerDay]TimeBucket
}

// NewEntityPattern creates an empty pattern for an entity.
func NewEntityPattern(entityID string) *EntityPattern {
	return &EntityPattern{EntityID: entityID}
}

// RecordActivity folds one activity observation into the bucket for the
// timestamp's (weekday, interval) cell.
func (p *EntityPattern) RecordActivity(ts time.Time) {
	p.buckets[weekdayIndex(ts)][intervalIndex(ts)].AddObservation(1.0)

	p.TotalObservations++
	if p.FirstObservation.IsZero() {
		p.FirstObservation = ts
	}
	p.LastObservation = ts
}

// ExpectedActivity returns the learned (mean, stddev) for the timestamp's
// (weekday, interval) cell.
func (p *EntityPattern) ExpectedActivity(ts time.Time) (mean, stdDev float64) {
	b := &p.buckets[weekdayIndex(ts)][intervalIndex(ts)]
	return b.Mean(), b.StdDev()
}

// Bucket returns the accumulator for a (weekday, interval) cell.
func (p *EntityPattern) Bucket(day, interval int) *TimeBucket {
	return &p.buckets[day][interval]
}

// TimeDescription returns a human-readable slot description such as
// "monday 09:15".
func (p *EntityPattern) TimeDescription(ts time.Time) string {
	return fmt.Sprintf("%s %s", dayNames[weekdayIndex(ts)], intervalTimeString(intervalIndex(ts)))
}

// expectedDailyTotal sums the expected mean activity over every interval of
// the given weekday.
func (p *EntityPattern) expectedDailyTotal(day int) float64 {
	var total float64
	for i := 0; i < IntervalsPerDay; i++ {
		total += p.buckets[day][i].Mean()
	}
	return total
}

// expectedByInterval sums the expected mean activity over intervals
// [0, upto] of the given weekday.
func (p *EntityPattern) expectedByInterval(day, upto int) float64 {
	var total float64
	for i := 0; i <= upto && i < IntervalsPerDay; i++ {
		total += p.buckets[day][i].Mean()
	}
	return total
}
