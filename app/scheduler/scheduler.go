package scheduler

import (
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/podcomb/podcomb/app/database"
)

// Frequency bounds: every computed polling interval lands inside
// [MinFrequency, MaxFrequency]. Declared on the database package so the
// due-selection SQL interpolates the same values.
const (
	MinFrequency     = database.MinFrequency
	MaxFrequency     = database.MaxFrequency
	DefaultFrequency = database.DefaultFrequency
)

const (
	// at most this many recent pub dates feed the interval estimate
	maxSampleSize = 12
	// pub dates older than this are ignored
	lookbackWindow = 90 * 24 * time.Hour
	// frequency grows by this factor per reschedule step
	rescheduleFactor = 0.1
	// intervals with |zscore| at or above this are trimmed as outliers
	outlierZScore = 1.96
)

// Schedule estimates the polling frequency of a feed from the cadence of its
// recent episodes. pubDate is the feed's latest pub date, pubDates the pub
// dates of its items.
func Schedule(pubDate time.Time, pubDates []time.Time, now time.Time) time.Duration {
	// a feed silent for longer than the max interval stays at the max
	if now.Sub(pubDate) > MaxFrequency {
		return MaxFrequency
	}

	frequency := DefaultFrequency
	if intervals := pairwiseIntervals(pubDates, now.Add(-lookbackWindow)); len(intervals) > 0 {
		if median := medianInterval(intervals); median > 0 {
			frequency = time.Duration(median * float64(time.Second))
		}
	}

	return Reschedule(&pubDate, frequency, now)
}

// Reschedule grows the frequency by 10% per step until the next poll time
// clears the last known pub date, then clamps it to bounds. This backs off
// quiet feeds relative to their publishing history, not wall clock alone.
func Reschedule(pubDate *time.Time, frequency time.Duration, now time.Time) time.Duration {
	if pubDate == nil {
		return DefaultFrequency
	}

	if frequency <= 0 {
		frequency = MinFrequency
	}

	for now.After(pubDate.Add(frequency)) && frequency < MaxFrequency {
		frequency += time.Duration(float64(frequency) * rescheduleFactor)
	}

	return clamp(frequency)
}

// IsDue reports whether a podcast is eligible for polling. Mirrors the
// due-selection predicate in the podcast repository; the two must stay in
// sync.
func IsDue(summary database.PodcastSummary, now time.Time) bool {
	if !summary.Active {
		return false
	}
	if summary.ClaimedAt != nil && summary.ClaimedAt.After(now.Add(-database.ClaimTTL)) {
		return false
	}
	if summary.Queued || summary.ParsedAt == nil || summary.PubDate == nil {
		return true
	}

	since := now.Add(-summary.Frequency)
	if summary.ParsedAt.Before(since) {
		return true
	}

	earliest := now.Add(-MaxFrequency)
	return !summary.PubDate.Before(earliest) && !summary.PubDate.After(since)
}

func clamp(frequency time.Duration) time.Duration {
	return max(min(frequency, MaxFrequency), MinFrequency)
}

// pairwiseIntervals returns the gaps in seconds between consecutive distinct
// pub dates inside the lookback window, newest first, capped to the sample
// size.
func pairwiseIntervals(pubDates []time.Time, since time.Time) []float64 {
	distinct := make(map[time.Time]bool, len(pubDates))
	var recent []time.Time
	for _, pubDate := range pubDates {
		if pubDate.After(since) && !distinct[pubDate] {
			distinct[pubDate] = true
			recent = append(recent, pubDate)
		}
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].After(recent[j]) })
	if len(recent) > maxSampleSize {
		recent = recent[:maxSampleSize]
	}

	var intervals []float64
	for i := 1; i < len(recent); i++ {
		intervals = append(intervals, recent[i-1].Sub(recent[i]).Seconds())
	}
	return intervals
}

// medianInterval trims zero and outlier intervals, then takes the median.
func medianInterval(intervals []float64) float64 {
	var nonZero []float64
	for _, interval := range intervals {
		if interval != 0 {
			nonZero = append(nonZero, interval)
		}
	}
	if len(nonZero) == 0 {
		return 0
	}

	kept := nonZero
	mean, meanErr := stats.Mean(nonZero)
	stdDev, stdDevErr := stats.StandardDeviation(nonZero)
	if meanErr == nil && stdDevErr == nil && stdDev > 0 {
		var trimmed []float64
		for _, interval := range nonZero {
			zscore := (interval - mean) / stdDev
			if zscore < outlierZScore && zscore > -outlierZScore {
				trimmed = append(trimmed, interval)
			}
		}
		if len(trimmed) > 0 {
			kept = trimmed
		}
	}

	median, err := stats.Median(kept)
	if err != nil {
		return 0
	}
	return median
}
