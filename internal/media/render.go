// SPDX-License-Identifier: MIT

package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/planner"
)

// RenderMaster produces the caption-free 9:16 master for a cut
// schedule. With two or more cuts each one is extracted with its
// speaker's crop zone and the fragments are stream-copy concatenated;
// a single cut renders directly. Fragments are removed on success and
// kept for debugging on failure.
func (r *Runner) RenderMaster(ctx context.Context, srcPath string, cuts []planner.Cut, speakers []planner.Speaker, outPath string) error {
	logger := log.WithComponentFromContext(ctx, "media")

	if len(cuts) == 0 {
		return errkind.New(errkind.KindRender, "empty cut schedule")
	}

	cropFor := func(speakerID int) planner.Rect {
		for _, s := range speakers {
			if s.ID == speakerID {
				return s.CropZone
			}
		}
		if len(speakers) > 0 {
			return speakers[0].CropZone
		}
		return planner.Rect{X: 0, Y: 0, W: planner.TargetWidth, H: planner.TargetHeight}
	}

	if len(cuts) == 1 {
		return r.Extract(ctx, srcPath, cuts[0].Offset, cuts[0].Duration, cropFor(cuts[0].SpeakerID), outPath)
	}

	workDir := filepath.Dir(outPath)
	base := filepath.Base(outPath)
	fragments := make([]string, 0, len(cuts))
	for i, cut := range cuts {
		frag := filepath.Join(workDir, fmt.Sprintf(".%s.frag%02d.mp4", base, i))
		if err := r.Extract(ctx, srcPath, cut.Offset, cut.Duration, cropFor(cut.SpeakerID), frag); err != nil {
			logger.Error().Err(err).Int("fragment", i).Msg("fragment extract failed, keeping partial fragments")
			return err
		}
		fragments = append(fragments, frag)
	}

	if err := r.Concat(ctx, fragments, outPath); err != nil {
		return err
	}

	for _, frag := range fragments {
		if err := os.Remove(frag); err != nil {
			logger.Warn().Err(err).Str("fragment", frag).Msg("fragment cleanup failed")
		}
	}
	logger.Info().Int("cuts", len(cuts)).Str("out", base).Msg("master rendered")
	return nil
}
