// SPDX-License-Identifier: MIT

package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
)

var overrideGroup = regexp.MustCompile(`\{[^}]*\}`)

// StripOverrides removes inline override groups from styled-variant text.
func StripOverrides(text string) string {
	return strings.TrimSpace(overrideGroup.ReplaceAllString(text, ""))
}

// ParseStyled reads the styled (ASS) variant. Style rows and dialogue
// rows are collected; malformed dialogue rows are skipped with a logged
// warning and do not fail the read. A document without an [Events]
// section is rejected.
func ParseStyled(r io.Reader) (*Document, error) {
	logger := log.WithComponent("subtitle")
	doc := &Document{}
	section := ""
	sawEvents := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.Trim(line, "[]"))
			if section == "events" {
				sawEvents = true
			}
			continue
		}
		switch section {
		case "script info":
			if v, ok := strings.CutPrefix(line, "Title:"); ok {
				doc.Title = strings.TrimSpace(v)
			}
		case "v4+ styles", "v4 styles+":
			if v, ok := strings.CutPrefix(line, "Style:"); ok {
				style, err := parseStyleRow(v)
				if err != nil {
					logger.Warn().Err(err).Msg("skipping malformed style row")
					continue
				}
				doc.Styles = append(doc.Styles, style)
			}
		case "events":
			if v, ok := strings.CutPrefix(line, "Dialogue:"); ok {
				ev, err := parseDialogueRow(v)
				if err != nil {
					logger.Warn().Err(err).Msg("skipping malformed dialogue row")
					continue
				}
				ev.Index = len(doc.Events)
				doc.Events = append(doc.Events, ev)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "read styled document")
	}
	if !sawEvents {
		return nil, errkind.New(errkind.KindParse, "no [Events] section")
	}
	return doc, nil
}

func parseStyleRow(row string) (Style, error) {
	fields := strings.Split(row, ",")
	if len(fields) < 4 {
		return Style{}, fmt.Errorf("style row has %d fields", len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	size, err := strconv.Atoi(fields[2])
	if err != nil {
		return Style{}, fmt.Errorf("bad font size %q", fields[2])
	}
	primary, err := ParseASSColor(fields[3])
	if err != nil {
		return Style{}, err
	}
	s := DefaultStyle(fields[0])
	s.Font = fields[1]
	s.Size = size
	s.Primary = primary
	// Optional trailing fields; keep defaults when absent.
	if len(fields) >= 23 {
		s.Bold = fields[7] == "1" || fields[7] == "-1"
		if v, err := strconv.Atoi(fields[16]); err == nil {
			s.Outline = v
		}
		if v, err := strconv.Atoi(fields[17]); err == nil {
			s.Shadow = v
		}
		if v, err := strconv.Atoi(fields[18]); err == nil {
			s.Alignment = v
		}
		if v, err := strconv.Atoi(fields[21]); err == nil {
			s.MarginV = v
		}
	}
	return s, nil
}

func parseDialogueRow(row string) (Event, error) {
	// Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text
	fields := strings.SplitN(row, ",", 10)
	if len(fields) < 10 {
		return Event{}, fmt.Errorf("dialogue row has %d fields", len(fields))
	}
	start, err := ParseASSTime(fields[1])
	if err != nil {
		return Event{}, err
	}
	end, err := ParseASSTime(fields[2])
	if err != nil {
		return Event{}, err
	}
	return Event{
		Speaker: strings.TrimSpace(fields[3]),
		Start:   start,
		End:     end,
		Text:    StripOverrides(fields[9]),
	}, nil
}

const stylesFormatRow = "Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding"

const eventsFormatRow = "Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text"

// WriteStyled serialises the styled variant. Inline override groups are
// regenerated from the structural fields: a fade/scale-pop entrance in
// the speaker's color, and emphasized lexicon terms restyled inline.
func WriteStyled(w io.Writer, doc *Document) error {
	bw := bufio.NewWriter(w)
	title := doc.Title
	if title == "" {
		title = "Clippy Captions"
	}
	fmt.Fprintf(bw, "[Script Info]\nTitle: %s\nScriptType: v4.00+\n\n", title)
	fmt.Fprintf(bw, "[V4+ Styles]\n%s\n", stylesFormatRow)
	for _, s := range doc.Styles {
		writeStyleRow(bw, s)
	}
	fmt.Fprintf(bw, "\n[Events]\n%s\n", eventsFormatRow)
	for _, e := range doc.Events {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		style, ok := doc.StyleFor(e.Speaker)
		if !ok {
			style = DefaultStyle(e.Speaker)
		}
		text := entranceOverlay(style.Primary) + emphasizeText(e.Text, style)
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
			FormatASSTime(e.Start), FormatASSTime(e.End), e.Speaker, text)
	}
	return bw.Flush()
}

func writeStyleRow(w io.Writer, s Style) {
	bold := 0
	if s.Bold {
		bold = 1
	}
	fmt.Fprintf(w, "Style: %s,%s,%d,%s,&H000000FF,&H00000000,&H80000000,%d,0,0,0,100,100,0,0,1,%d,%d,%d,30,30,%d,1\n",
		s.Name, s.Font, s.Size, s.Primary.ASS(), bold, s.Outline, s.Shadow, s.Alignment, s.MarginV)
}

// entranceOverlay encodes fade-in 150 ms and a scale pop from 110% back
// to 100% over 300..400 ms, in the speaker's primary color.
func entranceOverlay(c Color) string {
	return fmt.Sprintf(`{\fad(150,100)\t(0,300,\fscx110\fscy110)\t(300,400,\fscx100\fscy100)\c%s}`, c.ASS())
}

// emphasizeText uppercases lexicon terms and wraps them in an inline
// override restoring the speaker color at bold weight, size+2.
func emphasizeText(text string, style Style) string {
	out := text
	for _, word := range EmphasisLexicon {
		if !strings.Contains(strings.ToLower(out), word) {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(word))
		repl := fmt.Sprintf(`{\c%s\fs%d\b1}%s{\r}`, style.Primary.ASS(), style.Size+2, strings.ToUpper(word))
		out = re.ReplaceAllString(out, repl)
	}
	return out
}
