// SPDX-License-Identifier: MIT

package caption

import (
	"context"
	"os"

	"github.com/google/renameio/v2"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/metrics"
	"github.com/dschwenke/clippy/internal/subtitle"
)

// Burner rasterizes a subtitle file onto a video. Wired from the media
// package.
type Burner interface {
	Burn(ctx context.Context, inPath, subtitlePath, outPath string) error
}

// Paths locates a job's artifacts for regeneration.
type Paths struct {
	Master   string // caption-free master M0
	Final    string // advertised clip F0, replaced on success
	Subtitle string // styled subtitle document
}

// Engine re-renders captions after user edits.
type Engine struct {
	burner Burner
}

// NewEngine builds an Engine over the given burner.
func NewEngine(burner Burner) *Engine {
	return &Engine{burner: burner}
}

// Regenerate rebuilds the subtitle document from edits, burns it onto
// the preserved master and atomically replaces the final clip. On any
// failure the advertised clip is left untouched.
func (e *Engine) Regenerate(ctx context.Context, paths Paths, edits []Edit, clipDuration float64) (*subtitle.Document, error) {
	logger := log.WithComponentFromContext(ctx, "caption")

	original := readOriginal(paths.Subtitle)
	if original == nil {
		logger.Warn().Str("path", paths.Subtitle).Msg("original subtitle document unavailable, reconciling from edits alone")
	}

	doc, err := Rebuild(original, edits, clipDuration)
	if err != nil {
		metrics.RegenTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if err := writeDocument(paths.Subtitle, doc); err != nil {
		metrics.RegenTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	if _, err := os.Stat(paths.Master); err != nil {
		metrics.RegenTotal.WithLabelValues("failed").Inc()
		return nil, errkind.Wrap(errkind.KindIO, err, "caption-free master missing")
	}

	tempFinal := paths.Final + ".regen.tmp"
	if err := e.burner.Burn(ctx, paths.Master, paths.Subtitle, tempFinal); err != nil {
		_ = os.Remove(tempFinal)
		metrics.RegenTotal.WithLabelValues("failed").Inc()
		return nil, errkind.Wrap(errkind.KindRender, err, "burn regenerated captions")
	}

	// Rename, not truncate: readers mid-stream keep a consistent prior
	// version.
	if err := os.Rename(tempFinal, paths.Final); err != nil {
		_ = os.Remove(tempFinal)
		metrics.RegenTotal.WithLabelValues("failed").Inc()
		return nil, errkind.Wrap(errkind.KindIO, err, "swap regenerated clip")
	}

	metrics.RegenTotal.WithLabelValues("ok").Inc()
	logger.Info().Int("events", len(doc.Events)).Str("final", paths.Final).Msg("captions regenerated")
	return doc, nil
}

// readOriginal loads the authoritative timing source, tolerating a
// missing or unreadable document.
func readOriginal(path string) *subtitle.Document {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil
	}
	defer f.Close()

	doc, err := subtitle.Parse(f, subtitle.FormatForPath(path))
	if err != nil {
		return nil
	}
	return doc
}

// writeDocument serialises atomically so a crash mid-write never
// corrupts the authored document.
func writeDocument(path string, doc *subtitle.Document) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "stage subtitle document")
	}
	defer t.Cleanup() //nolint:errcheck

	if err := subtitle.Write(t, doc, subtitle.FormatForPath(path)); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "write subtitle document")
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "replace subtitle document")
	}
	return nil
}
