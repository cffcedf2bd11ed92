package transcribe

import (
	"math"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	got, err := parseDuration("  Duration: 01:02:03.45, start: 0.000000")
	if err != nil {
		t.Fatalf("parseDuration() error = %v", err)
	}
	want := time.Hour + 2*time.Minute + 3*time.Second + 450*time.Millisecond
	if got != want {
		t.Fatalf("duration = %v, want %v", got, want)
	}
}

// TestParseDurationFallsBackToProgress checks streams without a header.
func TestParseDurationFallsBackToProgress(t *testing.T) {
	out := "size=N/A time=00:00:01.00 bitrate=N/A\nsize=N/A time=00:00:07.25 bitrate=N/A\n"
	got, err := parseDuration(out)
	if err != nil {
		t.Fatalf("parseDuration() error = %v", err)
	}
	if got != 7250*time.Millisecond {
		t.Fatalf("duration = %v, want 7.25s", got)
	}

	if _, err := parseDuration("nothing useful"); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseMeanVolume(t *testing.T) {
	got, err := parseMeanVolume("[Parsed_volumedetect_0 @ 0x1] mean_volume: -23.7 dB")
	if err != nil {
		t.Fatalf("parseMeanVolume() error = %v", err)
	}
	if got != -23.7 {
		t.Fatalf("mean = %v, want -23.7", got)
	}

	silent, err := parseMeanVolume("mean_volume: -inf dB")
	if err != nil {
		t.Fatalf("parseMeanVolume(-inf) error = %v", err)
	}
	if !math.IsInf(silent, -1) {
		t.Fatalf("mean = %v, want -inf", silent)
	}

	if _, err := parseMeanVolume("no volume here"); err == nil {
		t.Fatal("expected error")
	}
}

// TestParseSilencesOpenEndedRunsToTotal checks a trailing silence.
func TestParseSilencesOpenEndedRunsToTotal(t *testing.T) {
	out := "silence_start: 1.5\nsilence_end: 2.5 | silence_duration: 1\nsilence_start: 8\n"
	got := parseSilences(out, 10*time.Second)

	want := []span{
		{start: 1500 * time.Millisecond, end: 2500 * time.Millisecond},
		{start: 8 * time.Second, end: 10 * time.Second},
	}
	assertSpans(t, got, want)
}

// TestSpeechSpansNoSilenceKeepsWholeTrack checks a single segment.
func TestSpeechSpansNoSilenceKeepsWholeTrack(t *testing.T) {
	got := speechSpans(nil, 5*time.Second, 500*time.Millisecond)
	assertSpans(t, got, []span{{start: 0, end: 5 * time.Second}})
}

// TestSpeechSpansAllSilenceIsEmpty checks no speech yields no spans.
func TestSpeechSpansAllSilenceIsEmpty(t *testing.T) {
	silences := []span{{start: 0, end: 5 * time.Second}}
	if got := speechSpans(silences, 5*time.Second, 500*time.Millisecond); len(got) != 0 {
		t.Fatalf("spans = %v, want none", got)
	}
	if got := speechSpans(nil, 0, 0); len(got) != 0 {
		t.Fatalf("spans for empty track = %v, want none", got)
	}
}

// TestSpeechSpansOverlappingPaddingSplitsAtMidpoint checks short silences.
func TestSpeechSpansOverlappingPaddingSplitsAtMidpoint(t *testing.T) {
	// 0.6s silence with 0.5s keep on both sides overlaps by 0.4s
	silences := []span{{start: 2 * time.Second, end: 2600 * time.Millisecond}}
	got := speechSpans(silences, 4*time.Second, 500*time.Millisecond)

	want := []span{
		{start: 0, end: 2300 * time.Millisecond},
		{start: 2300 * time.Millisecond, end: 4 * time.Second},
	}
	assertSpans(t, got, want)
}

// TestSpeechSpansPreserveOrder checks spans are ordered and disjoint.
func TestSpeechSpansPreserveOrder(t *testing.T) {
	silences := []span{
		{start: 1 * time.Second, end: 3 * time.Second},
		{start: 5 * time.Second, end: 7 * time.Second},
		{start: 9 * time.Second, end: 12 * time.Second},
	}
	got := speechSpans(silences, 12*time.Second, 0)

	want := []span{
		{start: 0, end: 1 * time.Second},
		{start: 3 * time.Second, end: 5 * time.Second},
		{start: 7 * time.Second, end: 9 * time.Second},
	}
	assertSpans(t, got, want)
}

func TestFormatFFmpegTime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 0, want: "00:00:00.000"},
		{in: 1500 * time.Millisecond, want: "00:00:01.500"},
		{in: time.Hour + 61*time.Second, want: "01:01:01.000"},
		{in: 59*time.Minute + 59250*time.Millisecond, want: "00:59:59.250"},
		{in: 59999700 * time.Microsecond, want: "00:01:00.000"},
		{in: time.Hour - 300*time.Microsecond, want: "01:00:00.000"},
		{in: 1499600 * time.Microsecond, want: "00:00:01.500"},
		{in: -time.Second, want: "00:00:00.000"},
	}
	for _, tc := range cases {
		if got := formatFFmpegTime(tc.in); got != tc.want {
			t.Fatalf("formatFFmpegTime(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func assertSpans(t *testing.T, got, want []span) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("spans = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("span[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
