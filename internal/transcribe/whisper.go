// SPDX-License-Identifier: MIT

package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
)

// AudioExtractor trims the window into a standalone audio file the
// transcription API can accept. Wired from the media package.
type AudioExtractor func(ctx context.Context, mediaPath string, offset, duration float64, outPath string) error

// Whisper transcribes via the OpenAI audio transcription API.
type Whisper struct {
	client  oai.Client
	model   string
	extract AudioExtractor
	workDir string
}

// whisperConfig holds optional Whisper adapter settings.
type whisperConfig struct {
	baseURL string
	timeout time.Duration
	model   string
}

// WhisperOption is a functional option for NewWhisper.
type WhisperOption func(*whisperConfig)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) WhisperOption {
	return func(c *whisperConfig) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) WhisperOption {
	return func(c *whisperConfig) { c.timeout = d }
}

// WithModel overrides the default whisper-1 model.
func WithModel(model string) WhisperOption {
	return func(c *whisperConfig) { c.model = model }
}

// NewWhisper constructs the Whisper adapter. workDir receives temporary
// audio extracts and must be writable.
func NewWhisper(apiKey string, extract AudioExtractor, workDir string, opts ...WhisperOption) (*Whisper, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: apiKey must not be empty")
	}
	if extract == nil {
		return nil, fmt.Errorf("whisper: extract must not be nil")
	}

	cfg := &whisperConfig{model: string(oai.AudioModelWhisper1)}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Whisper{
		client:  oai.NewClient(reqOpts...),
		model:   cfg.model,
		extract: extract,
		workDir: workDir,
	}, nil
}

// Segments implements Transcriber. The window is first trimmed to a
// temporary audio file, then sent for verbose transcription.
func (w *Whisper) Segments(ctx context.Context, mediaPath string, offset, duration float64, wantWords bool) ([]Segment, error) {
	logger := log.WithComponentFromContext(ctx, "transcribe")

	audioPath := filepath.Join(w.workDir, fmt.Sprintf("transcribe_%d.mp3", time.Now().UnixNano()))
	if err := w.extract(ctx, mediaPath, offset, duration, audioPath); err != nil {
		return nil, errkind.Wrap(errkind.KindTranscribe, err, "extract audio window")
	}
	defer os.Remove(audioPath)

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "open audio extract")
	}
	defer f.Close()

	params := oai.AudioTranscriptionNewParams{
		File:           f,
		Model:          oai.AudioModel(w.model),
		ResponseFormat: oai.AudioResponseFormatVerboseJSON,
	}
	if wantWords {
		params.TimestampGranularities = []string{"word", "segment"}
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindTranscribe, err, "transcription request")
	}

	segments := mapSegments(resp, wantWords)
	logger.Info().
		Int("segments", len(segments)).
		Bool("words", wantWords).
		Float64("offset", offset).
		Float64("duration", duration).
		Msg("transcription complete")
	return segments, nil
}

// mapSegments converts the API response to the package model. When the
// caller wants words but the response carries only a flat word list,
// words are attributed to segments by interval containment.
func mapSegments(resp *oai.Transcription, wantWords bool) []Segment {
	out := make([]Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		out = append(out, Segment{
			Text:  s.Text,
			Start: s.Start,
			End:   s.End,
		})
	}
	if len(out) == 0 && resp.Text != "" {
		out = append(out, Segment{Text: resp.Text})
	}
	if !wantWords || len(resp.Words) == 0 {
		return out
	}
	for _, w := range resp.Words {
		for i := range out {
			if w.Start >= out[i].Start-1e-6 && w.Start < out[i].End+1e-6 {
				out[i].Words = append(out[i].Words, Word{Text: w.Word, Start: w.Start, End: w.End})
				break
			}
		}
	}
	return out
}
