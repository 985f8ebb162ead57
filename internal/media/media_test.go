// SPDX-License-Identifier: MIT

package media

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner("", "")
	assert.Equal(t, "ffmpeg", r.FFmpegPath)
	assert.Equal(t, "ffprobe", r.FFprobePath)
	assert.Equal(t, "3M", r.VideoBitrate)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "master.mp4")
	dst := filepath.Join(dir, "master_no_captions.mp4")
	require.NoError(t, os.WriteFile(src, []byte("fake video bytes"), 0o644))

	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "fake video bytes", string(got))
}

func TestCopyFileMissingSource(t *testing.T) {
	err := CopyFile(filepath.Join(t.TempDir(), "missing.mp4"), filepath.Join(t.TempDir(), "out.mp4"))
	require.Error(t, err)
}

func TestEscapeFilterPath(t *testing.T) {
	assert.Equal(t, `C\:/clips/a\'s.ass`, escapeFilterPath(`C:/clips/a's.ass`))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "300.000", formatSeconds(300))
	assert.Equal(t, "2.500", formatSeconds(2.5))
}
