// SPDX-License-Identifier: MIT

package caption

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dschwenke/clippy/internal/subtitle"
)

type fakeBurner struct {
	fail  bool
	calls int
}

func (f *fakeBurner) Burn(_ context.Context, inPath, subtitlePath, outPath string) error {
	f.calls++
	if f.fail {
		return errors.New("burn exploded")
	}
	if _, err := os.Stat(inPath); err != nil {
		return err
	}
	if _, err := os.Stat(subtitlePath); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("burned "+filepath.Base(subtitlePath)), 0o644)
}

func regenFixture(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	paths := Paths{
		Master:   filepath.Join(dir, "clip_no_captions.mp4"),
		Final:    filepath.Join(dir, "clip.mp4"),
		Subtitle: filepath.Join(dir, "clip_captions.ass"),
	}
	require.NoError(t, os.WriteFile(paths.Master, []byte("pristine master"), 0o644))
	require.NoError(t, os.WriteFile(paths.Final, []byte("previous final"), 0o644))

	doc := &subtitle.Document{
		Events: []subtitle.Event{
			{Index: 0, Speaker: "Speaker 1", Start: 5.20, End: 7.30, Text: "original one"},
			{Index: 1, Speaker: "Speaker 1", Start: 18.45, End: 19.80, Text: "original two"},
		},
	}
	doc.EnsureStyles()
	f, err := os.Create(paths.Subtitle)
	require.NoError(t, err)
	require.NoError(t, subtitle.WriteStyled(f, doc))
	require.NoError(t, f.Close())
	return paths
}

func TestRegenerateReplacesFinal(t *testing.T) {
	paths := regenFixture(t)
	burner := &fakeBurner{}
	engine := NewEngine(burner)

	edits := []Edit{
		edit(0, "edited caption number one", "Speaker 1", "0:00:00.00", "0:00:01.00"),
		edit(1, "edited caption number two", "Speaker 1", "0:00:01.00", "0:00:02.00"),
	}

	doc, err := engine.Regenerate(context.Background(), paths, edits, 30)
	require.NoError(t, err)
	require.Len(t, doc.Events, 2)

	// Timings copied from the on-disk original.
	assert.InDelta(t, 5.20, doc.Events[0].Start, 0.005)
	assert.InDelta(t, 19.80, doc.Events[1].End, 0.005)

	final, err := os.ReadFile(paths.Final)
	require.NoError(t, err)
	assert.Contains(t, string(final), "burned")

	// The authored document was rewritten with the edits.
	f, err := os.Open(paths.Subtitle)
	require.NoError(t, err)
	defer f.Close()
	reread, err := subtitle.ParseStyled(f)
	require.NoError(t, err)
	assert.Equal(t, "edited caption number one", reread.Events[0].Text)
}

func TestRegenerateFailureLeavesFinalUntouched(t *testing.T) {
	paths := regenFixture(t)
	engine := NewEngine(&fakeBurner{fail: true})

	edits := []Edit{
		edit(0, "edited caption number one", "Speaker 1", "0:00:00.00", "0:00:01.00"),
		edit(1, "edited caption number two", "Speaker 1", "0:00:01.00", "0:00:02.00"),
	}

	_, err := engine.Regenerate(context.Background(), paths, edits, 30)
	require.Error(t, err)

	final, readErr := os.ReadFile(paths.Final)
	require.NoError(t, readErr)
	assert.Equal(t, "previous final", string(final))

	// No temp leftovers.
	_, statErr := os.Stat(paths.Final + ".regen.tmp")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRegenerateMissingMaster(t *testing.T) {
	paths := regenFixture(t)
	require.NoError(t, os.Remove(paths.Master))
	engine := NewEngine(&fakeBurner{})

	edits := []Edit{edit(0, "whatever caption text", "Speaker 1", "0:00:01.00", "0:00:03.00")}
	_, err := engine.Regenerate(context.Background(), paths, edits, 30)
	require.Error(t, err)

	final, readErr := os.ReadFile(paths.Final)
	require.NoError(t, readErr)
	assert.Equal(t, "previous final", string(final))
}

func TestRegenerateWithoutOriginalDocument(t *testing.T) {
	paths := regenFixture(t)
	require.NoError(t, os.Remove(paths.Subtitle))
	engine := NewEngine(&fakeBurner{})

	edits := []Edit{
		edit(0, "compressed caption text one", "Speaker 1", "0:00:00.00", "0:00:00.50"),
		edit(1, "compressed caption text two", "Speaker 1", "0:00:00.50", "0:00:01.00"),
	}

	doc, err := engine.Regenerate(context.Background(), paths, edits, 20)
	require.NoError(t, err)
	require.Len(t, doc.Events, 2)
	assert.GreaterOrEqual(t, doc.Events[0].Start, 1.0-1e-9)
}
