// SPDX-License-Identifier: MIT

// Package planner turns a chosen clip window into speaker profiles with
// 9:16 crop zones and a speaker-alternating cut schedule. Face
// detection itself is a capability; the planner only clusters results
// and does the crop geometry.
package planner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/phrase"
	"github.com/dschwenke/clippy/internal/subtitle"
)

// Output frame geometry.
const (
	TargetWidth  = 1080
	TargetHeight = 1920
)

// Box is a face detection in source-frame pixel coordinates.
type Box struct {
	X, Y, W, H int
}

func (b Box) CenterX() int { return b.X + b.W/2 }
func (b Box) CenterY() int { return b.Y + b.H/2 }

// Rect is a crop window in scaled-frame coordinates.
type Rect struct {
	X, Y, W, H int
}

// FaceDetector finds faces in a single still frame.
type FaceDetector interface {
	DetectFaces(ctx context.Context, imagePath string) ([]Box, error)
}

// FrameSampler extracts up to count evenly spaced stills from a window
// of the source into dir, returning their paths. Wired from the media
// package.
type FrameSampler func(ctx context.Context, mediaPath string, offset, window float64, count int, dir string) ([]string, error)

// Speaker is one planned crop target.
type Speaker struct {
	ID       int
	Label    string
	Color    subtitle.Color
	CenterX  int
	CenterY  int
	CropZone Rect
}

// previewWindow caps how much of the clip is analyzed for faces.
const previewWindow = 10.0

// maxSampleFrames caps the stills taken from the preview window.
const maxSampleFrames = 5

// Planner builds speaker plans for clip windows.
type Planner struct {
	detector FaceDetector
	sampler  FrameSampler
	workDir  string
}

// New constructs a Planner. detector may be nil, in which case every
// plan falls back to the two default speakers.
func New(detector FaceDetector, sampler FrameSampler, workDir string) *Planner {
	return &Planner{detector: detector, sampler: sampler, workDir: workDir}
}

// Plan samples frames from the clip window, clusters detected faces
// into at most two lateral groups and derives crop zones. With no
// usable detections it synthesizes two default speakers.
func (p *Planner) Plan(ctx context.Context, mediaPath string, width, height int, start, duration float64) ([]Speaker, error) {
	logger := log.WithComponentFromContext(ctx, "planner")

	window := duration
	if window > previewWindow {
		window = previewWindow
	}

	var faces []Box
	if p.detector != nil && p.sampler != nil {
		dir := filepath.Join(p.workDir, fmt.Sprintf("frames_%d", int(start)))
		if err := os.MkdirAll(dir, 0o755); err == nil {
			defer os.RemoveAll(dir)
			frames, err := p.sampler(ctx, mediaPath, start, window, maxSampleFrames, dir)
			if err != nil {
				logger.Warn().Err(err).Msg("frame sampling failed, using default speakers")
			}
			for _, frame := range frames {
				detected, err := p.detector.DetectFaces(ctx, frame)
				if err != nil {
					logger.Warn().Err(err).Str("frame", frame).Msg("face detection failed for frame")
					continue
				}
				faces = append(faces, detected...)
			}
		}
	}

	speakers := ClusterFaces(faces, width, height)
	if len(speakers) == 0 {
		speakers = DefaultSpeakers(width, height)
		logger.Info().Msg("no faces detected, synthesized default speakers")
	} else {
		logger.Info().Int("faces", len(faces)).Int("speakers", len(speakers)).Msg("speaker plan ready")
	}
	return speakers, nil
}

// ClusterFaces groups detections into a left and a right speaker by
// frame x-axis midpoint. Either side may be empty.
func ClusterFaces(faces []Box, width, height int) []Speaker {
	if len(faces) == 0 {
		return nil
	}
	var left, right []Box
	for _, f := range faces {
		if f.CenterX() < width/2 {
			left = append(left, f)
		} else {
			right = append(right, f)
		}
	}

	var out []Speaker
	if len(left) > 0 {
		x, y := meanCenter(left)
		out = append(out, newSpeaker(len(out), x, y, width, height, sideLeft))
	}
	if len(right) > 0 {
		x, y := meanCenter(right)
		out = append(out, newSpeaker(len(out), x, y, width, height, sideRight))
	}
	return out
}

// DefaultSpeakers places two synthetic speakers at the quarter points.
func DefaultSpeakers(width, height int) []Speaker {
	return []Speaker{
		newSpeaker(0, width/4, height/2, width, height, sideLeft),
		newSpeaker(1, 3*width/4, height/2, width, height, sideRight),
	}
}

type side int

const (
	sideLeft side = iota
	sideRight
	sideCenter
)

func newSpeaker(id, centerX, centerY, width, height int, s side) Speaker {
	label := phrase.Label(id)
	return Speaker{
		ID:       id,
		Label:    label,
		Color:    subtitle.SpeakerColor(label),
		CenterX:  centerX,
		CenterY:  centerY,
		CropZone: CropZone(centerX, width, height, s),
	}
}

// CropZone computes the 9:16 window for a face at faceX, in the
// coordinate space of the source scaled to TargetHeight. The face lands
// in the lateral third matching its side of the frame.
func CropZone(faceX, width, height int, s side) Rect {
	scale := float64(TargetHeight) / float64(height)
	scaledWidth := int(float64(width) * scale)

	cropX := 0
	if scaledWidth > TargetWidth {
		scaledFaceX := int(float64(faceX) * scale)
		switch s {
		case sideLeft:
			cropX = scaledFaceX - TargetWidth/3
			if cropX < 0 {
				cropX = 0
			}
		case sideRight:
			cropX = scaledFaceX - 2*TargetWidth/3
			if cropX > scaledWidth-TargetWidth {
				cropX = scaledWidth - TargetWidth
			}
			if cropX < 0 {
				cropX = 0
			}
		default:
			cropX = (scaledWidth - TargetWidth) / 2
		}
	}
	return Rect{X: cropX, Y: 0, W: TargetWidth, H: TargetHeight}
}

// CenterCrop returns the centered 9:16 window, used when no speaker
// plan applies.
func CenterCrop(width, height int) Rect {
	return CropZone(width/2, width, height, sideCenter)
}
