// SPDX-License-Identifier: MIT

package planner

import "math"

// nominalCutLength is the target length of one speaker segment. Tunable.
const nominalCutLength = 3.5

// Cut is one cut-schedule entry. Offset is in source seconds.
type Cut struct {
	Offset    float64
	Duration  float64
	SpeakerID int
}

// Schedule partitions a clip of target seconds starting at start into
// speaker-alternating cuts. With fewer than two speakers the whole clip
// is a single cut. Durations always sum to target.
func Schedule(start, target float64, numSpeakers int) []Cut {
	if target <= 0 {
		return nil
	}
	if numSpeakers < 2 {
		return []Cut{{Offset: start, Duration: target, SpeakerID: 0}}
	}

	n := int(math.Floor(target / nominalCutLength))
	if n == 0 {
		return []Cut{{Offset: start, Duration: target, SpeakerID: 0}}
	}
	r := target - float64(n)*nominalCutLength

	var durations []float64
	if r <= 0.5 {
		// Spread the remainder across equal segments.
		each := target / float64(n)
		for i := 0; i < n; i++ {
			durations = append(durations, each)
		}
	} else {
		for i := 0; i < n; i++ {
			durations = append(durations, nominalCutLength)
		}
		durations = append(durations, r)
	}

	cuts := make([]Cut, len(durations))
	offset := start
	for i, d := range durations {
		cuts[i] = Cut{Offset: offset, Duration: d, SpeakerID: i % numSpeakers}
		offset += d
	}
	return cuts
}
