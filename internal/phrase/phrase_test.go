// SPDX-License-Identifier: MIT

package phrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwenke/clippy/internal/transcribe"
)

func words(pairs ...interface{}) []transcribe.Word {
	out := make([]transcribe.Word, 0, len(pairs)/3)
	for i := 0; i+2 < len(pairs); i += 3 {
		out = append(out, transcribe.Word{
			Text:  pairs[i].(string),
			Start: pairs[i+1].(float64),
			End:   pairs[i+2].(float64),
		})
	}
	return out
}

func TestAssembleBreaksAtFourWords(t *testing.T) {
	seg := transcribe.Segment{
		Text:  "one two three four five six",
		Start: 0, End: 3,
		Words: words(
			"one", 0.0, 0.5, "two", 0.5, 1.0, "three", 1.0, 1.5,
			"four", 1.5, 2.0, "five", 2.0, 2.5, "six", 2.5, 3.0,
		),
	}

	out := Assemble([]transcribe.Segment{seg})
	require.Len(t, out, 2)
	assert.Equal(t, "one two three four", out[0].Text)
	assert.Equal(t, "five six", out[1].Text)
	assert.InDelta(t, 0.0, out[0].Start, 1e-9)
	assert.InDelta(t, 2.0, out[0].End, 1e-9)
	assert.InDelta(t, 2.0, out[1].Start, 1e-9)
	assert.InDelta(t, 3.0, out[1].End, 1e-9)
}

func TestAssembleBreaksOnPunctuationAndTokens(t *testing.T) {
	seg := transcribe.Segment{
		Text:  "hold on, we tried but it failed",
		Start: 0, End: 4,
		Words: words(
			"hold", 0.0, 0.4, "on,", 0.4, 0.8,
			"we", 0.8, 1.2, "tried", 1.2, 1.6, "but", 1.6, 2.0,
			"it", 2.0, 2.4, "failed", 2.4, 2.8,
		),
	}

	out := Assemble([]transcribe.Segment{seg})
	require.Len(t, out, 3)
	assert.Equal(t, "hold on,", out[0].Text)
	assert.Equal(t, "we tried but", out[1].Text)
	assert.Equal(t, "it failed", out[2].Text)
}

func TestAssembleNoBreakOnSingleWord(t *testing.T) {
	// A break token as the first accumulated word must not emit a
	// one-word phrase.
	seg := transcribe.Segment{
		Text:  "so anyway",
		Start: 0, End: 1,
		Words: words("so", 0.0, 0.5, "anyway", 0.5, 1.0),
	}

	out := Assemble([]transcribe.Segment{seg})
	require.Len(t, out, 1)
	assert.Equal(t, "so anyway", out[0].Text)
}

func TestAssembleSegmentModeFallback(t *testing.T) {
	seg := transcribe.Segment{Text: "whole segment as one phrase", Start: 1, End: 3}
	out := Assemble([]transcribe.Segment{seg})
	require.Len(t, out, 1)
	assert.Equal(t, "whole segment as one phrase", out[0].Text)
	assert.InDelta(t, 1.0, out[0].Start, 1e-9)
	assert.InDelta(t, 3.0, out[0].End, 1e-9)
}

func TestPhrasesStayWithinSegment(t *testing.T) {
	seg := transcribe.Segment{
		Text:  "a b c d e",
		Start: 2, End: 5,
		Words: words("a", 2.0, 2.5, "b", 2.5, 3.0, "c", 3.0, 3.5, "d", 3.5, 4.0, "e", 4.0, 5.0),
	}

	for _, p := range Assemble([]transcribe.Segment{seg}) {
		assert.LessOrEqual(t, p.Start, p.End)
		assert.GreaterOrEqual(t, p.Start, seg.Start)
		assert.LessOrEqual(t, p.End, seg.End)
	}
}

func TestSpeakerForSegment(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		index int
		total int
		want  int
	}{
		{name: "aggressive content", text: "that is fucking wild", index: 3, total: 4, want: 0},
		{name: "question mark", text: "you serious?", index: 3, total: 4, want: 0},
		{name: "question starter", text: "why would anyone", index: 3, total: 4, want: 0},
		{name: "long response", text: "well I think that the whole thing was planned from the start", index: 0, total: 4, want: 1},
		{name: "first half", text: "short reply", index: 0, total: 4, want: 1},
		{name: "second half", text: "short reply", index: 3, total: 4, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SpeakerForSegment(tt.text, tt.index, tt.total))
		})
	}
}

func TestEmphasisFlag(t *testing.T) {
	segs := []transcribe.Segment{
		{Text: "that was insane", Start: 0, End: 1},
		{Text: "that was fine", Start: 1, End: 2},
	}
	out := Assemble(segs)
	require.Len(t, out, 2)
	assert.True(t, out[0].Emphasized)
	assert.False(t, out[1].Emphasized)
}

func TestLabelAndColor(t *testing.T) {
	assert.Equal(t, "Speaker 1", Label(0))
	assert.Equal(t, "Speaker 2", Label(1))

	out := Assemble([]transcribe.Segment{{Text: "what happened", Start: 0, End: 1}})
	require.Len(t, out, 1)
	assert.Equal(t, "Speaker 1", out[0].SpeakerLabel)
	assert.Equal(t, "#FF4500", out[0].SpeakerColor.Hex())
}

func TestEventsShiftAndClamp(t *testing.T) {
	phrases := []Phrase{
		{Text: "before window", Start: 1, End: 2, SpeakerLabel: "Speaker 1"},
		{Text: "straddles start", Start: 2.5, End: 4, SpeakerLabel: "Speaker 1"},
		{Text: "inside", Start: 5, End: 6, SpeakerLabel: "Speaker 2"},
	}

	events := Events(phrases, 3)
	require.Len(t, events, 2)
	assert.Equal(t, "straddles start", events[0].Text)
	assert.InDelta(t, 0.0, events[0].Start, 1e-9)
	assert.InDelta(t, 1.0, events[0].End, 1e-9)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, 1, events[1].Index)
	assert.InDelta(t, 2.0, events[1].Start, 1e-9)
}
