// SPDX-License-Identifier: MIT

package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClusterFacesSplitsLeftRight(t *testing.T) {
	faces := []Box{
		{X: 300, Y: 200, W: 100, H: 100},  // center 350 -> left
		{X: 320, Y: 220, W: 100, H: 100},  // center 370 -> left
		{X: 1400, Y: 200, W: 100, H: 100}, // center 1450 -> right
	}

	speakers := ClusterFaces(faces, 1920, 1080)
	require.Len(t, speakers, 2)
	assert.Equal(t, 0, speakers[0].ID)
	assert.Equal(t, "Speaker 1", speakers[0].Label)
	assert.Equal(t, 360, speakers[0].CenterX)
	assert.Equal(t, 1, speakers[1].ID)
	assert.Equal(t, "Speaker 2", speakers[1].Label)
	assert.Equal(t, 1450, speakers[1].CenterX)
}

func TestClusterFacesSingleSide(t *testing.T) {
	faces := []Box{{X: 200, Y: 200, W: 100, H: 100}}
	speakers := ClusterFaces(faces, 1920, 1080)
	require.Len(t, speakers, 1)
	assert.Equal(t, "Speaker 1", speakers[0].Label)
}

func TestDefaultSpeakers(t *testing.T) {
	speakers := DefaultSpeakers(1920, 1080)
	require.Len(t, speakers, 2)
	assert.Equal(t, 480, speakers[0].CenterX)
	assert.Equal(t, 540, speakers[0].CenterY)
	assert.Equal(t, 1440, speakers[1].CenterX)
}

func TestCropZoneGeometry(t *testing.T) {
	// 1920x1080 scales to 3413x1920; crop is always 1080x1920.
	left := CropZone(480, 1920, 1080, sideLeft)
	assert.Equal(t, TargetWidth, left.W)
	assert.Equal(t, TargetHeight, left.H)
	// face at 480 scales to 853; minus a third of the width.
	assert.Equal(t, 853-360, left.X)

	right := CropZone(1440, 1920, 1080, sideRight)
	assert.Equal(t, 2560-720, right.X)

	// Crop never runs past the scaled frame.
	farRight := CropZone(1919, 1920, 1080, sideRight)
	assert.LessOrEqual(t, farRight.X+TargetWidth, 3413)

	// Narrow source: nothing to crop laterally.
	narrow := CropZone(100, 500, 1080, sideLeft)
	assert.Equal(t, 0, narrow.X)
}

func TestCenterCrop(t *testing.T) {
	c := CenterCrop(1920, 1080)
	assert.Equal(t, (3413-1080)/2, c.X)
}

func TestScheduleTwoSpeakers(t *testing.T) {
	// 20 s: 5 cuts of 3.5 plus a 2.5 remainder, alternating from 0.
	cuts := Schedule(300, 20, 2)
	require.Len(t, cuts, 6)

	var sum float64
	for i, c := range cuts {
		assert.Equal(t, i%2, c.SpeakerID)
		sum += c.Duration
	}
	assert.InDelta(t, 20, sum, 0.001)
	assert.InDelta(t, 300, cuts[0].Offset, 1e-9)
	assert.InDelta(t, 2.5, cuts[5].Duration, 1e-9)
	assert.InDelta(t, 317.5, cuts[5].Offset, 1e-9)
}

func TestScheduleSmallRemainderSpreadsEvenly(t *testing.T) {
	// 14.2 s: n=4, r=0.2 <= 0.5, so 4 equal cuts of 3.55.
	cuts := Schedule(0, 14.2, 2)
	require.Len(t, cuts, 4)
	var sum float64
	for _, c := range cuts {
		assert.InDelta(t, 3.55, c.Duration, 1e-9)
		sum += c.Duration
	}
	assert.InDelta(t, 14.2, sum, 0.001)
}

func TestScheduleSingleSpeaker(t *testing.T) {
	cuts := Schedule(100, 20, 1)
	require.Len(t, cuts, 1)
	assert.InDelta(t, 20, cuts[0].Duration, 1e-9)
	assert.Equal(t, 0, cuts[0].SpeakerID)
}

func TestScheduleShorterThanNominal(t *testing.T) {
	cuts := Schedule(0, 2, 2)
	require.Len(t, cuts, 1)
	assert.InDelta(t, 2, cuts[0].Duration, 1e-9)
}

type stubDetector struct{ faces []Box }

func (s stubDetector) DetectFaces(_ context.Context, _ string) ([]Box, error) {
	return s.faces, nil
}

func TestPlanFallsBackToDefaults(t *testing.T) {
	p := New(nil, nil, t.TempDir())
	speakers, err := p.Plan(context.Background(), "ignored.mp4", 1920, 1080, 0, 20)
	require.NoError(t, err)
	require.Len(t, speakers, 2)
	assert.Equal(t, "Speaker 1", speakers[0].Label)
}

func TestPlanUsesDetections(t *testing.T) {
	sampler := func(_ context.Context, _ string, _, _ float64, _ int, _ string) ([]string, error) {
		return []string{"frame0.jpg"}, nil
	}
	p := New(stubDetector{faces: []Box{{X: 1300, Y: 100, W: 200, H: 200}}}, sampler, t.TempDir())

	speakers, err := p.Plan(context.Background(), "in.mp4", 1920, 1080, 5, 20)
	require.NoError(t, err)
	require.Len(t, speakers, 1)
	assert.Equal(t, 1400, speakers[0].CenterX)
}
