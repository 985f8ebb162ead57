// SPDX-License-Identifier: MIT

package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
)

// ParseSimple reads the simple (SRT) variant: numbered blocks of
// index / "start --> end" / text, with an optional leading "[speaker] "
// prefix on the text. Malformed blocks are skipped with a warning.
func ParseSimple(r io.Reader) (*Document, error) {
	logger := log.WithComponent("subtitle")
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "read simple document")
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(strings.TrimSpace(content), "\n\n")

	doc := &Document{}
	parsedAny := false
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(lines[0])); err != nil {
			logger.Warn().Str("line", lines[0]).Msg("skipping block without numeric index")
			continue
		}
		startStr, endStr, ok := strings.Cut(lines[1], "-->")
		if !ok {
			logger.Warn().Str("line", lines[1]).Msg("skipping block without timing row")
			continue
		}
		start, err1 := ParseSRTTime(startStr)
		end, err2 := ParseSRTTime(endStr)
		if err1 != nil || err2 != nil {
			logger.Warn().Str("line", lines[1]).Msg("skipping block with malformed timing")
			continue
		}
		text := strings.Join(lines[2:], "\n")
		speaker := "Speaker 1"
		if strings.HasPrefix(text, "[") {
			if i := strings.Index(text, "] "); i > 0 {
				speaker = text[1:i]
				text = text[i+2:]
			}
		}
		doc.Events = append(doc.Events, Event{
			Index:   len(doc.Events),
			Speaker: speaker,
			Start:   start,
			End:     end,
			Text:    strings.TrimSpace(text),
		})
		parsedAny = true
	}
	if !parsedAny && strings.TrimSpace(content) != "" {
		return nil, errkind.New(errkind.KindParse, "no parseable blocks")
	}
	doc.EnsureStyles()
	return doc, nil
}

// WriteSimple serialises the simple variant. The "[speaker] " prefix is
// emitted only when the document carries more than one distinct speaker.
func WriteSimple(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	multiSpeaker := len(doc.Speakers()) > 1
	n := 0
	for _, e := range doc.Events {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		n++
		prefix := ""
		if multiSpeaker {
			prefix = "[" + e.Speaker + "] "
		}
		fmt.Fprintf(bw, "%d\n%s --> %s\n%s%s\n\n",
			n, FormatSRTTime(e.Start), FormatSRTTime(e.End), prefix, e.Text)
	}
	return bw.Flush()
}

// Parse reads a document in the given format.
func Parse(r io.Reader, format Format) (*Document, error) {
	switch format {
	case FormatSimple:
		return ParseSimple(r)
	default:
		return ParseStyled(r)
	}
}

// Write serialises a document in the given format.
func Write(w io.Writer, doc *Document, format Format) error {
	switch format {
	case FormatSimple:
		return WriteSimple(w, doc)
	default:
		return WriteStyled(w, doc)
	}
}
