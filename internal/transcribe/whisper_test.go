// SPDX-License-Identifier: MIT

package transcribe

import (
	"context"
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWhisperValidation(t *testing.T) {
	extract := func(context.Context, string, float64, float64, string) error { return nil }

	_, err := NewWhisper("", extract, t.TempDir())
	require.Error(t, err)

	_, err = NewWhisper("sk-test", nil, t.TempDir())
	require.Error(t, err)

	w, err := NewWhisper("sk-test", extract, t.TempDir(), WithModel("whisper-large"))
	require.NoError(t, err)
	assert.Equal(t, "whisper-large", w.model)
}

func TestFuncAdapter(t *testing.T) {
	called := false
	f := Func(func(ctx context.Context, mediaPath string, offset, duration float64, wantWords bool) ([]Segment, error) {
		called = true
		assert.Equal(t, "in.mp4", mediaPath)
		assert.True(t, wantWords)
		return []Segment{{Text: "hi"}}, nil
	})

	segs, err := f.Segments(context.Background(), "in.mp4", 10, 30, true)
	require.NoError(t, err)
	assert.True(t, called)
	require.Len(t, segs, 1)
}

func TestMapSegmentsAttributesWords(t *testing.T) {
	resp := &oai.Transcription{
		Segments: []oai.TranscriptionSegment{
			{Text: "hello there", Start: 0, End: 2},
			{Text: "general kenobi", Start: 2, End: 4},
		},
		Words: []oai.TranscriptionWord{
			{Word: "hello", Start: 0.1, End: 0.8},
			{Word: "there", Start: 0.9, End: 1.6},
			{Word: "general", Start: 2.2, End: 2.9},
			{Word: "kenobi", Start: 3.0, End: 3.8},
		},
	}

	segs := mapSegments(resp, true)
	require.Len(t, segs, 2)
	require.Len(t, segs[0].Words, 2)
	require.Len(t, segs[1].Words, 2)
	assert.Equal(t, "hello", segs[0].Words[0].Text)
	assert.Equal(t, "kenobi", segs[1].Words[1].Text)
}

func TestMapSegmentsWithoutWords(t *testing.T) {
	resp := &oai.Transcription{
		Segments: []oai.TranscriptionSegment{{Text: "hello", Start: 0, End: 2}},
		Words:    []oai.TranscriptionWord{{Word: "hello", Start: 0.1, End: 0.8}},
	}

	segs := mapSegments(resp, false)
	require.Len(t, segs, 1)
	assert.Empty(t, segs[0].Words)
}

func TestMapSegmentsFallsBackToFlatText(t *testing.T) {
	resp := &oai.Transcription{Text: "just one line"}
	segs := mapSegments(resp, true)
	require.Len(t, segs, 1)
	assert.Equal(t, "just one line", segs[0].Text)
}
