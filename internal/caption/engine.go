// SPDX-License-Identifier: MIT

// Package caption rebuilds the styled subtitle document from user edits
// while preserving speech timing, and re-burns it onto the preserved
// caption-free master.
package caption

import (
	"github.com/rs/zerolog"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/subtitle"
)

// Edit is one user-edited caption as received on the wire. Times use
// the styled variant's H:MM:SS.CC format.
type Edit struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	SpeakerLabel string `json:"speaker"`
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
}

// Timing reconciliation modes.
type timingMode string

const (
	modeCopy         timingMode = "copy"          // one-to-one from the original document
	modeTruncate     timingMode = "truncate"      // first |U| original timings
	modeSpread       timingMode = "spread"        // redistribute across the original span
	modeRedistribute timingMode = "redistribute"  // no original, compressed timings
	modeMinimalFix   timingMode = "minimal_fix"   // no original, timings look sane
)

// Gap and duration floors.
const (
	gapMinimalFix   = 0.05
	gapRedistribute = 0.1
	minDuration     = subtitle.MinDuration
)

// Redistribution constants for documents without original timings.
const (
	coverageThreshold = 0.6
	spanStartFrac     = 0.05
	spanEndFrac       = 0.90
	nominalLength     = 1.5
	strideFloor       = 0.3
	strideCeil        = 2.0
	shortEventFix     = 0.8
)

// Spread constants for more edits than original events.
const (
	spreadMaxLength = 2.0
	spreadFill      = 0.7
)

// parseEdits converts wire edits to events, preserving order.
func parseEdits(edits []Edit) ([]subtitle.Event, error) {
	events := make([]subtitle.Event, 0, len(edits))
	for i, e := range edits {
		start, err := subtitle.ParseTime(e.StartTime)
		if err != nil {
			return nil, errkind.Wrap(errkind.KindInvalidInput, err, "caption start time")
		}
		end, err := subtitle.ParseTime(e.EndTime)
		if err != nil {
			return nil, errkind.Wrap(errkind.KindInvalidInput, err, "caption end time")
		}
		speaker := e.SpeakerLabel
		if speaker == "" {
			speaker = "Speaker 1"
		}
		events = append(events, subtitle.Event{
			Index:   i,
			Speaker: speaker,
			Start:   start,
			End:     end,
			Text:    e.Text,
		})
	}
	return events, nil
}

// Rebuild produces the new styled document from user edits. original
// may be nil when the on-disk document could not be read; clipDuration
// is the clip length in seconds.
func Rebuild(original *subtitle.Document, edits []Edit, clipDuration float64) (*subtitle.Document, error) {
	logger := log.WithComponent("caption")

	parsed, err := parseEdits(edits)
	if err != nil {
		return nil, err
	}
	events := subtitle.Normalize(parsed)

	doc := &subtitle.Document{Title: "Clippy Captions"}
	if len(events) == 0 {
		doc.EnsureStyles()
		return doc, nil
	}

	mode := reconcileTimings(original, events, clipDuration)

	gap := gapMinimalFix
	if mode == modeSpread || mode == modeRedistribute {
		gap = gapRedistribute
	}
	sweepOverlaps(events, gap, logger)

	doc.Events = events
	doc.EnsureStyles()
	doc.Reindex()

	if len(doc.Events) != len(events) {
		return nil, errkind.New(errkind.KindInternal, "event count drifted during rebuild: %d != %d", len(doc.Events), len(events))
	}

	logger.Info().
		Str("mode", string(mode)).
		Int("events", len(doc.Events)).
		Msg("caption document rebuilt")
	return doc, nil
}

// reconcileTimings assigns event timings in place and reports the mode
// used.
func reconcileTimings(original *subtitle.Document, events []subtitle.Event, clipDuration float64) timingMode {
	if original != nil && len(original.Events) > 0 {
		switch {
		case len(events) == len(original.Events):
			for i := range events {
				events[i].Start = original.Events[i].Start
				events[i].End = original.Events[i].End
			}
			return modeCopy
		case len(events) < len(original.Events):
			for i := range events {
				events[i].Start = original.Events[i].Start
				events[i].End = original.Events[i].End
			}
			return modeTruncate
		default:
			spreadAcrossSpan(events, original)
			return modeSpread
		}
	}

	first := events[0].Start
	last := events[len(events)-1].End
	coverage := 0.0
	if clipDuration > 0 {
		coverage = (last - first) / clipDuration
	}
	if coverage < coverageThreshold {
		redistribute(events, clipDuration)
		return modeRedistribute
	}

	// Timings look plausible; only repair events that are too short to
	// read.
	for i := range events {
		if events[i].Duration() < minDuration {
			events[i].End = events[i].Start + shortEventFix
		}
	}
	return modeMinimalFix
}

// spreadAcrossSpan lays events across the original document's speech
// span at equal stride, anchored at the original first start.
func spreadAcrossSpan(events []subtitle.Event, original *subtitle.Document) {
	first, last := original.Span()
	span := last - first
	n := float64(len(events))
	stride := span / n
	duration := spreadMaxLength
	if d := stride * spreadFill; d < duration {
		duration = d
	}
	for i := range events {
		events[i].Start = first + float64(i)*stride
		events[i].End = events[i].Start + duration
	}
}

// redistribute lays events across the usable clip window when the
// provided timings are bunched at the start.
func redistribute(events []subtitle.Event, clipDuration float64) {
	start := spanStartFrac * clipDuration
	end := spanEndFrac * clipDuration
	n := float64(len(events))

	stride := (end - start) / n
	if stride < strideFloor {
		stride = strideFloor
	}
	if stride > strideCeil {
		stride = strideCeil
	}

	duration := nominalLength
	if d := stride - gapRedistribute; d < duration {
		duration = d
	}
	if duration < minDuration {
		duration = minDuration
	}

	for i := range events {
		events[i].Start = start + float64(i)*stride
		events[i].End = events[i].Start + duration
	}
}

// sweepOverlaps trims each event that runs into its successor, keeping
// the minimum gap. The duration floor wins over the gap when the two
// conflict.
func sweepOverlaps(events []subtitle.Event, gap float64, logger zerolog.Logger) {
	for i := 0; i+1 < len(events); i++ {
		limit := events[i+1].Start - gap
		if events[i].End > limit {
			events[i].End = limit
		}
		if events[i].Duration() < minDuration {
			events[i].End = events[i].Start + minDuration
			logger.Warn().Float64("start", events[i].Start).Int("index", i).Msg("caption held at minimum duration, gap not satisfiable")
		}
	}
}
