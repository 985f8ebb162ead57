// SPDX-License-Identifier: MIT

// Package phrase turns word-timed transcript segments into the short
// 2-4 word phrases that work as burned-in captions, attributing each
// phrase to a speaker with content heuristics.
package phrase

import (
	"fmt"
	"strings"

	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/subtitle"
	"github.com/dschwenke/clippy/internal/transcribe"
)

// Phrase is one caption-sized unit of speech.
type Phrase struct {
	Text         string
	Start        float64
	End          float64
	SpeakerID    int
	SpeakerLabel string
	SpeakerColor subtitle.Color
	Emphasized   bool
}

// maxPhraseWords caps a phrase before a natural break is found.
const maxPhraseWords = 4

// breakTokens end a phrase early once it has at least two words.
var breakTokens = map[string]bool{
	"and": true, "but": true, "or": true, "so": true,
	"then": true, "well": true, "yeah": true, "ok": true,
}

// aggressiveWords route a segment to speaker 0.
var aggressiveWords = []string{
	"fucking", "shit", "damn", "crazy", "insane", "ridiculous", "what the hell",
}

// questionStarters route a segment to speaker 0.
var questionStarters = []string{"what", "why", "how", "is", "was", "did"}

func isBreakWord(w string) bool {
	if breakTokens[strings.ToLower(w)] {
		return true
	}
	return w != "" && strings.ContainsAny(w[len(w)-1:], ",.!?:")
}

// SpeakerForSegment assigns a speaker id to a transcript segment when
// the transcriber provides no diarization. Rules in priority order:
// aggressive content and questions go to speaker 0, long responses to
// speaker 1, and the remainder alternates by position half.
func SpeakerForSegment(text string, index, total int) int {
	lower := strings.ToLower(text)
	for _, w := range aggressiveWords {
		if strings.Contains(lower, w) {
			return 0
		}
	}
	if strings.Contains(text, "?") {
		return 0
	}
	for _, s := range questionStarters {
		if strings.HasPrefix(lower, s) {
			return 0
		}
	}
	if len(strings.Fields(text)) > 8 {
		return 1
	}
	if total > 0 && index < total/2 {
		return 1
	}
	return 0
}

// Label maps a 0-based speaker id to its display label.
func Label(speakerID int) string {
	return fmt.Sprintf("Speaker %d", speakerID+1)
}

// Assemble converts transcript segments into phrases. Segments without
// per-word timings become a single phrase each.
func Assemble(segments []transcribe.Segment) []Phrase {
	logger := log.WithComponent("phrase")
	var out []Phrase

	for i, seg := range segments {
		speakerID := SpeakerForSegment(seg.Text, i, len(segments))
		label := Label(speakerID)
		color := subtitle.SpeakerColor(label)

		emit := func(text string, start, end float64) {
			text = strings.TrimSpace(text)
			if text == "" {
				return
			}
			out = append(out, Phrase{
				Text:         text,
				Start:        start,
				End:          end,
				SpeakerID:    speakerID,
				SpeakerLabel: label,
				SpeakerColor: color,
				Emphasized:   subtitle.ContainsEmphasis(text),
			})
		}

		if len(seg.Words) == 0 {
			emit(seg.Text, seg.Start, seg.End)
			continue
		}

		var words []transcribe.Word
		flush := func() {
			if len(words) == 0 {
				return
			}
			texts := make([]string, len(words))
			for j, w := range words {
				texts[j] = w.Text
			}
			emit(strings.Join(texts, " "), words[0].Start, words[len(words)-1].End)
			words = nil
		}

		for j, w := range seg.Words {
			words = append(words, w)
			last := j == len(seg.Words)-1
			if len(words) >= maxPhraseWords || last || (len(words) >= 2 && isBreakWord(w.Text)) {
				flush()
			}
		}
	}

	logger.Debug().Int("segments", len(segments)).Int("phrases", len(out)).Msg("assembled phrases")
	return out
}

// Events projects phrases into subtitle events, shifted so that the
// clip's own timeline starts at zero.
func Events(phrases []Phrase, offset float64) []subtitle.Event {
	events := make([]subtitle.Event, 0, len(phrases))
	for i, p := range phrases {
		start := p.Start - offset
		end := p.End - offset
		if end <= 0 {
			continue
		}
		if start < 0 {
			start = 0
		}
		events = append(events, subtitle.Event{
			Index:   i,
			Speaker: p.SpeakerLabel,
			Start:   start,
			End:     end,
			Text:    p.Text,
		})
	}
	for i := range events {
		events[i].Index = i
	}
	return events
}
