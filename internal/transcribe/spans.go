package transcribe

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	durationRe     = regexp.MustCompile(`Duration:\s*(\d+):(\d+):(\d+)(?:\.(\d+))?`)
	progressRe     = regexp.MustCompile(`time=(\d+):(\d+):(\d+)(?:\.(\d+))?`)
	meanVolumeRe   = regexp.MustCompile(`mean_volume:\s*(-?inf|-?[\d.]+)\s*dB`)
	silenceStartRe = regexp.MustCompile(`silence_start:\s*(-?[\d.]+)`)
	silenceEndRe   = regexp.MustCompile(`silence_end:\s*(-?[\d.]+)`)
)

// span is a half-open [start, end) range on the source timeline.
type span struct {
	start time.Duration
	end   time.Duration
}

func (s span) length() time.Duration {
	return s.end - s.start
}

// parseDuration extracts the input duration from ffmpeg stderr, falling back
// to the last progress timestamp.
func parseDuration(output string) (time.Duration, error) {
	if m := durationRe.FindStringSubmatch(output); m != nil {
		return clockToDuration(m[1], m[2], m[3], m[4]), nil
	}
	all := progressRe.FindAllStringSubmatch(output, -1)
	if len(all) > 0 {
		m := all[len(all)-1]
		return clockToDuration(m[1], m[2], m[3], m[4]), nil
	}
	return 0, fmt.Errorf("could not parse duration from ffmpeg output")
}

// clockToDuration converts HH:MM:SS.frac components.
func clockToDuration(hours, minutes, seconds, fractional string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)

	var frac time.Duration
	if fractional != "" {
		// normalize to nanoseconds: ".45" -> 450ms
		padded := (fractional + "000000000")[:9]
		n, _ := strconv.Atoi(padded)
		frac = time.Duration(n)
	}

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		frac
}

// parseMeanVolume extracts volumedetect's mean_volume in dBFS. Digital
// silence reports -inf.
func parseMeanVolume(output string) (float64, error) {
	m := meanVolumeRe.FindStringSubmatch(output)
	if m == nil {
		return 0, fmt.Errorf("could not parse mean_volume from ffmpeg output")
	}
	if strings.HasSuffix(m[1], "inf") {
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse mean_volume %q: %w", m[1], err)
	}
	return v, nil
}

// parseSilences extracts silencedetect intervals. A trailing silence_start
// without a matching end runs to total.
func parseSilences(output string, total time.Duration) []span {
	var out []span
	open := false
	var current time.Duration

	for _, line := range strings.Split(output, "\n") {
		if m := silenceStartRe.FindStringSubmatch(line); m != nil {
			current = secondsToDuration(m[1])
			open = true
			continue
		}
		if m := silenceEndRe.FindStringSubmatch(line); m != nil && open {
			out = append(out, span{start: current, end: secondsToDuration(m[1])})
			open = false
		}
	}
	if open {
		out = append(out, span{start: current, end: total})
	}
	return out
}

func secondsToDuration(raw string) time.Duration {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}

// speechSpans returns the non-silent ranges between silences, each padded by
// keep on both sides. Where neighbouring pads overlap the cut is placed at
// the midpoint of the overlap. Results are clamped to [0, total].
func speechSpans(silences []span, total, keep time.Duration) []span {
	if total <= 0 {
		return nil
	}

	var voiced []span
	cursor := time.Duration(0)
	for _, s := range silences {
		start := clamp(s.start, 0, total)
		end := clamp(s.end, 0, total)
		if start > cursor {
			voiced = append(voiced, span{start: cursor, end: start})
		}
		if end > cursor {
			cursor = end
		}
	}
	if cursor < total {
		voiced = append(voiced, span{start: cursor, end: total})
	}

	padded := make([]span, 0, len(voiced))
	for _, v := range voiced {
		if v.length() < time.Millisecond {
			continue
		}
		padded = append(padded, span{start: v.start - keep, end: v.end + keep})
	}

	for i := 0; i+1 < len(padded); i++ {
		if padded[i+1].start < padded[i].end {
			mid := (padded[i].end + padded[i+1].start) / 2
			padded[i].end = mid
			padded[i+1].start = mid
		}
	}

	for i := range padded {
		padded[i].start = clamp(padded[i].start, 0, total)
		padded[i].end = clamp(padded[i].end, 0, total)
	}
	return padded
}

func clamp(v, low, high time.Duration) time.Duration {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// formatFFmpegTime formats a duration for -ss/-to arguments.
// Rounding happens on whole milliseconds so seconds never reach 60.
func formatFFmpegTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
