// SPDX-License-Identifier: MIT

// Package peak picks a start offset for a clip inside a longer source.
// The strategy is purely positional: no decoding, no audio analysis,
// just duration-class heuristics that favor the places engaging moments
// tend to live. Deterministic given the same inputs.
package peak

import (
	"fmt"
	"sort"

	"github.com/dschwenke/clippy/internal/log"
)

// Class buckets a source by its total duration.
type Class string

const (
	ClassLongForm   Class = "long_form"   // >= 30 min
	ClassMediumForm Class = "medium_form" // 10..30 min
	ClassShortForm  Class = "short_form"  // 3..10 min
	ClassVeryShort  Class = "very_short"  // < 3 min
)

// Classify maps a source duration in seconds to its class.
func Classify(duration float64) Class {
	switch {
	case duration >= 1800:
		return ClassLongForm
	case duration >= 600:
		return ClassMediumForm
	case duration >= 180:
		return ClassShortForm
	default:
		return ClassVeryShort
	}
}

// Choice is a selected start offset with a confidence in [0,1].
type Choice struct {
	Start      float64
	Confidence float64
	Reason     string
}

// candidate is one scored start position.
type candidate struct {
	offset float64
	score  float64
	reason string
}

// openingHookOffsets is the early-engagement band for long-form sources,
// in seconds from the start.
var openingHookOffsets = []float64{120, 180, 300, 420}

// Pinned returns the choice for a caller-supplied start offset. The
// heuristics are bypassed and confidence is fixed.
func Pinned(start float64) Choice {
	return Choice{Start: start, Confidence: 0.5, Reason: "caller-pinned start"}
}

// Pick selects a start offset for a clip of targetDuration seconds
// inside a source of the given duration. The returned start always
// leaves room for the full clip.
func Pick(duration, targetDuration float64) Choice {
	logger := log.WithComponent("peak")
	class := Classify(duration)

	cands := candidates(duration, class)
	if len(cands) == 0 {
		c := fallback(duration)
		logger.Debug().Float64("start", c.Start).Str("class", string(class)).Msg("no candidates, using fallback start")
		return clampToFit(c, duration, targetDuration)
	}

	// Highest score wins; ties go to the lower offset.
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].offset < cands[j].offset
	})
	best := cands[0]

	logger.Debug().
		Str("class", string(class)).
		Float64("start", best.offset).
		Float64("score", best.score).
		Int("candidates", len(cands)).
		Msg("selected start offset")

	return clampToFit(Choice{Start: best.offset, Confidence: best.score, Reason: best.reason}, duration, targetDuration)
}

func candidates(duration float64, class Class) []candidate {
	var out []candidate
	switch class {
	case ClassLongForm, ClassMediumForm:
		// Opening hook band, preferring earlier positions. For medium
		// sources the band is scaled down proportionally.
		scale := 1.0
		if class == ClassMediumForm {
			scale = duration / 1800
		}
		for _, base := range openingHookOffsets {
			t := base * scale
			if t >= duration {
				continue
			}
			out = append(out, candidate{
				offset: t,
				score:  0.7 - (t/duration)*0.2,
				reason: fmt.Sprintf("opening hook at %.0fs", t),
			})
		}
		for _, frac := range []float64{0.25, 0.4, 0.6} {
			out = append(out, candidate{
				offset: duration * frac,
				score:  0.6,
				reason: fmt.Sprintf("mid-conversation at %d%%", int(frac*100)),
			})
		}
	case ClassShortForm:
		// Engagement tends to sit in the middle third.
		for _, frac := range []float64{0.4, 0.5, 0.6} {
			out = append(out, candidate{
				offset: duration * frac,
				score:  0.8 - abs(0.5-frac),
				reason: fmt.Sprintf("short-form peak at %d%%", int(frac*100)),
			})
		}
	default:
		for _, frac := range []float64{0.15, 0.35, 0.55, 0.75} {
			out = append(out, candidate{
				offset: duration * frac,
				score:  0.5,
				reason: fmt.Sprintf("generic position at %d%%", int(frac*100)),
			})
		}
	}
	return out
}

// fallback mirrors the candidate heuristics with a single coarse guess.
func fallback(duration float64) Choice {
	var start float64
	switch {
	case duration >= 1800:
		start = 300
	case duration >= 600:
		start = 180
	default:
		start = duration * 0.3
	}
	return Choice{Start: start, Confidence: 0.3, Reason: "fallback heuristic"}
}

// clampToFit pulls the start back so start+target never exceeds the
// source duration.
func clampToFit(c Choice, duration, targetDuration float64) Choice {
	maxStart := duration - targetDuration
	if maxStart < 0 {
		maxStart = 0
	}
	if c.Start > maxStart {
		c.Start = maxStart
	}
	if c.Start < 0 {
		c.Start = 0
	}
	return c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
