package scheduler

import (
	"testing"
	"time"

	"github.com/podcomb/podcomb/app/database"
)

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func weeklyPubDates(count int) []time.Time {
	pubDates := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		pubDates = append(pubDates, testNow.Add(-time.Duration(i+1)*7*24*time.Hour))
	}
	return pubDates
}

func TestScheduleWeeklyCadence(t *testing.T) {
	pubDates := weeklyPubDates(8)
	frequency := Schedule(pubDates[0], pubDates, testNow)

	// a weekly feed polled a week after its last episode should come out
	// near the weekly cadence
	if frequency < 6*24*time.Hour || frequency > 10*24*time.Hour {
		t.Errorf("Expected roughly weekly frequency, got %s", frequency)
	}
}

func TestScheduleBounds(t *testing.T) {
	cases := map[string][]time.Time{
		"hourly":  {testNow.Add(-time.Hour), testNow.Add(-2 * time.Hour), testNow.Add(-3 * time.Hour)},
		"weekly":  weeklyPubDates(6),
		"single":  {testNow.Add(-24 * time.Hour)},
		"erratic": {testNow.Add(-time.Hour), testNow.Add(-40 * 24 * time.Hour), testNow.Add(-41 * 24 * time.Hour)},
	}

	for name, pubDates := range cases {
		frequency := Schedule(pubDates[0], pubDates, testNow)
		if frequency < MinFrequency || frequency > MaxFrequency {
			t.Errorf("%s: frequency %s outside [%s, %s]", name, frequency, MinFrequency, MaxFrequency)
		}
	}
}

func TestScheduleSilentFeed(t *testing.T) {
	pubDate := testNow.Add(-60 * 24 * time.Hour)
	frequency := Schedule(pubDate, []time.Time{pubDate}, testNow)

	if frequency != MaxFrequency {
		t.Errorf("Expected max frequency for a long-silent feed, got %s", frequency)
	}
}

func TestScheduleNoIntervals(t *testing.T) {
	pubDate := testNow.Add(-6 * time.Hour)
	frequency := Schedule(pubDate, []time.Time{pubDate}, testNow)

	// a single pub date yields no intervals, so the default applies
	if frequency != DefaultFrequency {
		t.Errorf("Expected default frequency, got %s", frequency)
	}
}

func TestReschedule(t *testing.T) {
	if got := Reschedule(nil, 6*time.Hour, testNow); got != DefaultFrequency {
		t.Errorf("Expected default frequency for nil pub date, got %s", got)
	}

	// fresh pub date, frequency below the floor gets clamped up
	fresh := testNow.Add(-time.Hour)
	if got := Reschedule(&fresh, time.Hour, testNow); got != MinFrequency {
		t.Errorf("Expected min frequency, got %s", got)
	}

	// zero frequency starts from the floor
	if got := Reschedule(&fresh, 0, testNow); got != MinFrequency {
		t.Errorf("Expected min frequency for zero input, got %s", got)
	}

	// stale pub date grows the frequency past the elapsed silence
	stale := testNow.Add(-10 * 24 * time.Hour)
	got := Reschedule(&stale, 24*time.Hour, testNow)
	if got <= 24*time.Hour {
		t.Errorf("Expected frequency to grow past 24h, got %s", got)
	}
	if testNow.After(stale.Add(got)) && got < MaxFrequency {
		t.Errorf("Expected next poll to clear the pub date, got %s", got)
	}

	// growth is capped at the ceiling
	ancient := testNow.Add(-300 * 24 * time.Hour)
	if got := Reschedule(&ancient, 24*time.Hour, testNow); got != MaxFrequency {
		t.Errorf("Expected max frequency, got %s", got)
	}
}

func TestIsDue(t *testing.T) {
	parsedRecent := testNow.Add(-time.Hour)
	parsedStale := testNow.Add(-48 * time.Hour)
	pubRecent := testNow.Add(-12 * time.Hour)
	pubOld := testNow.Add(-60 * 24 * time.Hour)
	claimedFresh := testNow.Add(-10 * time.Minute)
	claimedExpired := testNow.Add(-2 * time.Hour)

	tests := []struct {
		name     string
		summary  database.PodcastSummary
		expected bool
	}{
		{
			"inactive",
			database.PodcastSummary{Active: false, Queued: true},
			false,
		},
		{
			"never parsed",
			database.PodcastSummary{Active: true, Frequency: 24 * time.Hour},
			true,
		},
		{
			"queued",
			database.PodcastSummary{Active: true, Queued: true, ParsedAt: &parsedRecent, PubDate: &pubRecent, Frequency: 24 * time.Hour},
			true,
		},
		{
			"frequency elapsed",
			database.PodcastSummary{Active: true, ParsedAt: &parsedStale, PubDate: &pubOld, Frequency: 24 * time.Hour},
			true,
		},
		{
			"recently parsed",
			database.PodcastSummary{Active: true, ParsedAt: &parsedRecent, PubDate: &pubOld, Frequency: 24 * time.Hour},
			false,
		},
		{
			"pub date inside window",
			database.PodcastSummary{Active: true, ParsedAt: &parsedRecent, PubDate: &pubRecent, Frequency: 6 * time.Hour},
			true,
		},
		{
			"claimed by another pass",
			database.PodcastSummary{Active: true, Queued: true, ClaimedAt: &claimedFresh},
			false,
		},
		{
			"claim expired",
			database.PodcastSummary{Active: true, Queued: true, ClaimedAt: &claimedExpired},
			true,
		},
	}

	for _, tt := range tests {
		if got := IsDue(tt.summary, testNow); got != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, got)
		}
	}
}
