// SPDX-License-Identifier: MIT

// Package subtitle holds the in-memory caption document and its two wire
// formats: the styled variant (ASS sections with inline override groups)
// and the simple variant (numbered SRT blocks). Both carry the same
// semantics; the styled variant additionally encodes per-speaker styling
// and entrance animation.
package subtitle

import (
	"fmt"
	"sort"
	"strings"
)

// Format tags the wire format a document was read from or written to.
type Format string

const (
	FormatStyled Format = "ass"
	FormatSimple Format = "srt"
)

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string { return string(f) }

// FormatForPath guesses the format from a file extension.
func FormatForPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".srt") {
		return FormatSimple
	}
	return FormatStyled
}

// Style is one row of the style table, keyed by speaker label.
type Style struct {
	Name      string
	Font      string
	Size      int
	Primary   Color
	Outline   int
	Shadow    int
	Alignment int
	MarginV   int
	Bold      bool
}

// DefaultStyle returns the canonical style row for a speaker label.
func DefaultStyle(label string) Style {
	return Style{
		Name:      label,
		Font:      "Arial Black",
		Size:      22,
		Primary:   SpeakerColor(label),
		Outline:   3,
		Shadow:    1,
		Alignment: 2,
		MarginV:   50,
		Bold:      true,
	}
}

// Event is one caption. Text is plain: inline override groups are
// stripped on read and regenerated on write from the structural fields.
type Event struct {
	Index   int
	Speaker string
	Start   float64 // seconds
	End     float64 // seconds
	Text    string
}

// Duration returns End-Start.
func (e Event) Duration() float64 { return e.End - e.Start }

// Document is the authored caption document: ordered events plus a style
// table keyed by speaker label.
type Document struct {
	Title  string
	Styles []Style
	Events []Event
}

// StyleFor looks up the style row for a speaker label.
func (d *Document) StyleFor(label string) (Style, bool) {
	for _, s := range d.Styles {
		if s.Name == label {
			return s, true
		}
	}
	return Style{}, false
}

// EnsureStyles rebuilds the style table from the speaker labels present
// in the events, keeping label order stable (first appearance wins).
func (d *Document) EnsureStyles() {
	seen := make(map[string]bool, len(d.Styles))
	var styles []Style
	for _, e := range d.Events {
		if e.Speaker == "" || seen[e.Speaker] {
			continue
		}
		seen[e.Speaker] = true
		if s, ok := d.StyleFor(e.Speaker); ok {
			styles = append(styles, s)
		} else {
			styles = append(styles, DefaultStyle(e.Speaker))
		}
	}
	d.Styles = styles
}

// Reindex sorts events by index, then assigns 0-based consecutive indexes.
func (d *Document) Reindex() {
	sort.SliceStable(d.Events, func(i, j int) bool {
		return d.Events[i].Index < d.Events[j].Index
	})
	for i := range d.Events {
		d.Events[i].Index = i
	}
}

// Span returns the first start and last end, or zeros for an empty document.
func (d *Document) Span() (first, last float64) {
	if len(d.Events) == 0 {
		return 0, 0
	}
	return d.Events[0].Start, d.Events[len(d.Events)-1].End
}

// Speakers returns the distinct speaker labels in event order.
func (d *Document) Speakers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range d.Events {
		if e.Speaker == "" || seen[e.Speaker] {
			continue
		}
		seen[e.Speaker] = true
		out = append(out, e.Speaker)
	}
	return out
}

// MinGap is the smallest allowed gap between consecutive events.
const MinGap = 0.05

// MinDuration is the hard floor for a single event.
const MinDuration = 0.3

// Validate checks the document invariants: positive durations, the
// minimum inter-event gap, and a style row per speaker label.
func (d *Document) Validate() error {
	for i, e := range d.Events {
		if e.Start >= e.End {
			return fmt.Errorf("event %d: start %.2f >= end %.2f", i, e.Start, e.End)
		}
		if i+1 < len(d.Events) {
			next := d.Events[i+1]
			if e.End > next.Start-MinGap+1e-9 {
				return fmt.Errorf("event %d overlaps %d: end %.2f > next start %.2f - %.2f", i, i+1, e.End, next.Start, MinGap)
			}
		}
		if e.Speaker != "" {
			if _, ok := d.StyleFor(e.Speaker); !ok {
				return fmt.Errorf("event %d: no style for speaker %q", i, e.Speaker)
			}
		}
	}
	return nil
}

// EmphasisLexicon is the canonical set of terms that get emphasized
// styling when burned in. Matching is case-insensitive.
var EmphasisLexicon = []string{
	"fucking", "shit", "damn", "crazy", "insane", "ridiculous",
	"amazing", "incredible", "awesome", "epic", "legendary",
}

// ContainsEmphasis reports whether text contains any lexicon term.
func ContainsEmphasis(text string) bool {
	lower := strings.ToLower(text)
	for _, w := range EmphasisLexicon {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
