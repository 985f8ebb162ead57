// SPDX-License-Identifier: MIT

package subtitle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dschwenke/clippy/internal/errkind"
)

// Timestamps travel in two wire shapes: the styled (ASS) variant uses
// H:MM:SS.CC centiseconds, the simple (SRT) variant uses HH:MM:SS,mmm
// milliseconds. Internally everything is seconds as float64.

// ParseTime accepts either variant and returns seconds.
func ParseTime(s string) (float64, error) {
	if strings.Contains(s, ",") {
		return ParseSRTTime(s)
	}
	return ParseASSTime(s)
}

// ParseASSTime parses H:MM:SS.CC (the hour field may be missing).
func ParseASSTime(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	var hh, mm int
	var rest string
	switch len(parts) {
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, errkind.New(errkind.KindParse, "bad hour in %q", s)
		}
		hh = h
		parts = parts[1:]
	case 2:
	default:
		return 0, errkind.New(errkind.KindParse, "bad timestamp %q", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, errkind.New(errkind.KindParse, "bad minute in %q", s)
	}
	mm = m
	rest = parts[1]

	sec, cs := rest, "0"
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		sec, cs = rest[:i], rest[i+1:]
	}
	ss, err := strconv.Atoi(sec)
	if err != nil {
		return 0, errkind.New(errkind.KindParse, "bad second in %q", s)
	}
	centi, err := strconv.Atoi(cs)
	if err != nil {
		return 0, errkind.New(errkind.KindParse, "bad centiseconds in %q", s)
	}
	if mm > 59 || ss > 59 || centi > 99 || hh < 0 || mm < 0 || ss < 0 || centi < 0 {
		return 0, errkind.New(errkind.KindParse, "timestamp out of range %q", s)
	}
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(centi)/100, nil
}

// FormatASSTime renders seconds as H:MM:SS.CC.
func FormatASSTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	cs := int(seconds*100 + 0.5)
	h := cs / 360000
	cs -= h * 360000
	m := cs / 6000
	cs -= m * 6000
	s := cs / 100
	cs -= s * 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// ParseSRTTime parses HH:MM:SS,mmm.
func ParseSRTTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	main, ms := s, "0"
	if i := strings.IndexByte(s, ','); i >= 0 {
		main, ms = s[:i], s[i+1:]
	}
	parts := strings.Split(main, ":")
	if len(parts) != 3 {
		return 0, errkind.New(errkind.KindParse, "bad timestamp %q", s)
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	ss, err3 := strconv.Atoi(parts[2])
	milli, err4 := strconv.Atoi(ms)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, errkind.New(errkind.KindParse, "bad timestamp %q", s)
	}
	if hh < 0 || mm < 0 || mm > 59 || ss < 0 || ss > 59 || milli < 0 || milli > 999 {
		return 0, errkind.New(errkind.KindParse, "timestamp out of range %q", s)
	}
	return float64(hh)*3600 + float64(mm)*60 + float64(ss) + float64(milli)/1000, nil
}

// FormatSRTTime renders seconds as HH:MM:SS,mmm.
func FormatSRTTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int(seconds*1000 + 0.5)
	h := ms / 3600000
	ms -= h * 3600000
	m := ms / 60000
	ms -= m * 60000
	s := ms / 1000
	ms -= s * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
