package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2026-03-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2026, 3, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2026, 3, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestHumanDuration(t *testing.T) {
	cases := map[time.Duration]string{
		30 * time.Second:   "under a minute",
		time.Minute:        "1 minute",
		45 * time.Minute:   "45 minutes",
		3 * time.Hour:      "3 hours",
		50 * time.Hour:     "2 days",
		26 * time.Hour:     "1 day",
	}
	for d, want := range cases {
		if got := HumanDuration(d); got != want {
			t.Fatalf("HumanDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestHumanDistance(t *testing.T) {
	if got := HumanDistance(850); got != "850 m" {
		t.Fatalf("got %q", got)
	}
	if got := HumanDistance(12500); got != "12.5 km" {
		t.Fatalf("got %q", got)
	}
}
