// SPDX-License-Identifier: MIT

package subtitle

import "strings"

// FragMeanThreshold is the mean text length below which a caption batch
// is considered over-split by the client.
const FragMeanThreshold = 5.0

// isFragment reports whether a single caption looks like a split-off
// piece: very short, or short and trailing a comma.
func isFragment(text string) bool {
	n := len(text)
	return n <= 3 || (n <= 8 && strings.HasSuffix(text, ","))
}

var noSpaceBefore = ",.!?:;"

// joinFragments concatenates fragment texts with single spaces, omitting
// the space before closing punctuation.
func joinFragments(texts []string) string {
	var b strings.Builder
	for i, t := range texts {
		if i > 0 && !strings.ContainsRune(noSpaceBefore, rune(t[0])) {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}

// Normalize merges runs of same-speaker short fragments into single
// events. Merging only happens when the mean text length across the
// whole batch is below FragMeanThreshold; otherwise the input is
// returned re-indexed but otherwise untouched. Empty-text events are
// dropped either way. Normalize is idempotent.
func Normalize(events []Event) []Event {
	var in []Event
	for _, e := range events {
		e.Text = strings.TrimSpace(e.Text)
		if e.Text != "" {
			in = append(in, e)
		}
	}
	if len(in) == 0 {
		return nil
	}

	total := 0
	for _, e := range in {
		total += len(e.Text)
	}
	mean := float64(total) / float64(len(in))

	if mean >= FragMeanThreshold {
		out := make([]Event, len(in))
		copy(out, in)
		for i := range out {
			out[i].Index = i
		}
		return out
	}

	var out []Event
	flush := func(run []Event) {
		if len(run) == 0 {
			return
		}
		if len(run) == 1 {
			out = append(out, run[0])
			return
		}
		texts := make([]string, len(run))
		for i, e := range run {
			texts[i] = e.Text
		}
		merged := run[0]
		merged.End = run[len(run)-1].End
		merged.Text = joinFragments(texts)
		out = append(out, merged)
	}

	var run []Event
	for _, e := range in {
		if len(run) > 0 && (e.Speaker != run[0].Speaker || !isFragment(e.Text)) {
			flush(run)
			run = nil
		}
		if isFragment(e.Text) {
			run = append(run, e)
		} else {
			out = append(out, e)
		}
	}
	flush(run)

	for i := range out {
		out[i].Index = i
	}
	return out
}
