package timeengine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// RateSample is a dose rate (µSv/h) observed at an instant.
type RateSample struct {
	Rate float64
	At   time.Time
}

// IntegrateSession integrates samples as a step function over [start, end]:
// each sample's rate holds until the next sample, the last one holds until
// end. Samples are ordered by timestamp, not by position in the slice. A
// sample taken before start only contributes the part of its step after
// start; samples after end are ignored. ok is false when no sample falls at
// or before end.
func IntegrateSession(samples []RateSample, start, end time.Time) (total decimal.Decimal, ok bool) {
	ordered := make([]RateSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At.Before(ordered[j].At)
	})

	total = decimal.Zero
	for i, s := range ordered {
		if s.At.After(end) {
			break
		}
		ok = true

		next := end
		if i+1 < len(ordered) && ordered[i+1].At.Before(end) {
			next = ordered[i+1].At
		}
		from := s.At
		if from.Before(start) {
			from = start
		}
		if !next.After(from) {
			continue
		}
		total = total.Add(IntegrateDose(s.Rate, DurationOf(next.Sub(from)).Hours))
	}
	return total, ok
}
