// SPDX-License-Identifier: MIT

// Package transcribe defines the speech-to-text capability the pipeline
// depends on, plus the Whisper-backed default adapter.
package transcribe

import "context"

// Word is a single word with its spoken interval.
type Word struct {
	Text  string
	Start float64
	End   float64
}

// Segment is a transcript span. Words is populated only in word mode.
type Segment struct {
	Text  string
	Start float64
	End   float64
	Words []Word
}

// Transcriber produces transcript segments for a window of a media
// file. Offset and duration select the window in source seconds;
// returned timings are relative to the window start. wantWords asks for
// per-word timings where the backend supports them.
type Transcriber interface {
	Segments(ctx context.Context, mediaPath string, offset, duration float64, wantWords bool) ([]Segment, error)
}

// Func adapts a plain function to the Transcriber interface.
type Func func(ctx context.Context, mediaPath string, offset, duration float64, wantWords bool) ([]Segment, error)

func (f Func) Segments(ctx context.Context, mediaPath string, offset, duration float64, wantWords bool) ([]Segment, error) {
	return f(ctx, mediaPath, offset, duration, wantWords)
}
