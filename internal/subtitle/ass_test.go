// SPDX-License-Identifier: MIT

package subtitle

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwenke/clippy/internal/errkind"
)

func styledFixture() *Document {
	doc := &Document{
		Title: "Clippy Captions",
		Events: []Event{
			{Index: 0, Speaker: "Speaker 1", Start: 0.5, End: 2.1, Text: "hold on a second"},
			{Index: 1, Speaker: "Speaker 2", Start: 2.2, End: 4.0, Text: "what is going on"},
			{Index: 2, Speaker: "Speaker 1", Start: 4.1, End: 5.9, Text: "that was CRAZY right"},
		},
	}
	doc.EnsureStyles()
	return doc
}

func TestStyledRoundTripIsStable(t *testing.T) {
	doc := styledFixture()

	var first bytes.Buffer
	require.NoError(t, WriteStyled(&first, doc))

	reread, err := ParseStyled(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)

	var second bytes.Buffer
	require.NoError(t, WriteStyled(&second, reread))

	// Overrides are stripped on read and regenerated deterministically on
	// write, so a second pass reproduces the first byte for byte.
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Fatalf("second write differs (-first +second):\n%s", diff)
	}
}

func TestParseStyledRecoversStructure(t *testing.T) {
	doc := styledFixture()
	var buf bytes.Buffer
	require.NoError(t, WriteStyled(&buf, doc))

	got, err := ParseStyled(&buf)
	require.NoError(t, err)
	require.Len(t, got.Events, 3)
	assert.Equal(t, "Clippy Captions", got.Title)
	assert.Equal(t, "Speaker 2", got.Events[1].Speaker)
	assert.InDelta(t, 2.2, got.Events[1].Start, 0.005)
	assert.InDelta(t, 4.0, got.Events[1].End, 0.005)
	// Inline override groups must not survive the read.
	for _, e := range got.Events {
		assert.NotContains(t, e.Text, "{")
	}
	// The lexicon term comes back uppercased by the writer.
	assert.Equal(t, "that was CRAZY right", got.Events[2].Text)

	s1, ok := got.StyleFor("Speaker 1")
	require.True(t, ok)
	assert.Equal(t, "Arial Black", s1.Font)
	assert.Equal(t, 22, s1.Size)
	assert.Equal(t, "#FF4500", s1.Primary.Hex())
	assert.True(t, s1.Bold)
	assert.Equal(t, 50, s1.MarginV)
}

func TestParseStyledSkipsMalformedDialogue(t *testing.T) {
	in := strings.Join([]string{
		"[Script Info]",
		"Title: x",
		"",
		"[Events]",
		"Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text",
		"Dialogue: 0,0:00:01.00,0:00:02.00,Speaker 1,,0,0,0,,fine",
		"Dialogue: 0,not-a-time,0:00:04.00,Speaker 1,,0,0,0,,broken",
		"Dialogue: garbage",
	}, "\n")

	doc, err := ParseStyled(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, doc.Events, 1)
	assert.Equal(t, "fine", doc.Events[0].Text)
}

func TestParseStyledRequiresEventsSection(t *testing.T) {
	_, err := ParseStyled(strings.NewReader("[Script Info]\nTitle: x\n"))
	require.Error(t, err)
	assert.Equal(t, errkind.KindParse, errkind.KindOf(err))
}

func TestEmphasizeText(t *testing.T) {
	style := DefaultStyle("Speaker 1")
	out := emphasizeText("that was insane dude", style)
	assert.Contains(t, out, "INSANE")
	assert.Contains(t, out, `\fs24\b1`)
	assert.Contains(t, out, `{\r}`)

	plain := emphasizeText("nothing special here", style)
	assert.Equal(t, "nothing special here", plain)
}

func TestStripOverrides(t *testing.T) {
	in := `{\fad(150,100)\c&H000045FF}hello {\b1}WORLD{\r}`
	assert.Equal(t, "hello WORLD", StripOverrides(in))
}
