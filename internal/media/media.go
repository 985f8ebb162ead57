// SPDX-License-Identifier: MIT

// Package media wraps the external ffmpeg/ffprobe tools behind the
// three primitives the render pipeline composes: extract, concat and
// burn. All operations are synchronous and context-bounded.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/planner"
)

// Runner executes media tool invocations.
type Runner struct {
	FFmpegPath  string
	FFprobePath string

	// VideoBitrate is applied to extract re-encodes.
	VideoBitrate string
}

// NewRunner builds a Runner with the given binary paths; empty paths
// fall back to lookup on PATH.
func NewRunner(ffmpegPath, ffprobePath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Runner{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath, VideoBitrate: "3M"}
}

// stderrTail keeps error output small enough to embed in messages.
const stderrTail = 2048

func (r *Runner) run(ctx context.Context, bin string, args ...string) error {
	logger := log.WithComponentFromContext(ctx, "media")
	logger.Debug().Str("bin", bin).Strs("args", args).Msg("running media tool")

	cmd := exec.CommandContext(ctx, bin, args...) // #nosec G204
	var stderr bytes.Buffer
	cmd.Stdout = nil
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		tail := stderr.String()
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(bin), err, strings.TrimSpace(tail))
	}
	return nil
}

// Info is the probe result for a media file.
type Info struct {
	Duration float64
	Width    int
	Height   int
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

// Probe reads duration and frame geometry.
func (r *Runner) Probe(ctx context.Context, path string) (Info, error) {
	cmd := exec.CommandContext(ctx, r.FFprobePath, // #nosec G204
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, errkind.Wrap(errkind.KindRender, err, "probe media")
	}

	var parsed probeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Info{}, errkind.Wrap(errkind.KindParse, err, "decode probe output")
	}

	info := Info{}
	if parsed.Format.Duration != "" {
		if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = d
		}
	}
	for _, s := range parsed.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	if info.Duration <= 0 {
		return Info{}, errkind.New(errkind.KindRender, "probe reported no duration for %s", filepath.Base(path))
	}
	return info, nil
}

// Extract re-encodes a source window to a 1080x1920 fragment using the
// given crop window in scaled coordinates.
func (r *Runner) Extract(ctx context.Context, inPath string, offset, duration float64, crop planner.Rect, outPath string) error {
	vf := fmt.Sprintf("scale=-2:%d,crop=%d:%d:%d:%d", planner.TargetHeight, crop.W, crop.H, crop.X, crop.Y)
	err := r.run(ctx, r.FFmpegPath,
		"-ss", formatSeconds(offset),
		"-t", formatSeconds(duration),
		"-i", inPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-b:v", r.VideoBitrate,
		"-c:a", "aac",
		"-y", outPath,
	)
	if err != nil {
		return errkind.Wrap(errkind.KindRender, err, "extract fragment")
	}
	return nil
}

// Concat joins fragments with stream copy via the concat demuxer.
func (r *Runner) Concat(ctx context.Context, paths []string, outPath string) error {
	if len(paths) == 0 {
		return errkind.New(errkind.KindRender, "concat needs at least one fragment")
	}
	listPath := outPath + ".txt"
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		fmt.Fprintf(&b, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`))
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "write concat list")
	}
	defer os.Remove(listPath)

	err := r.run(ctx, r.FFmpegPath,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y", outPath,
	)
	if err != nil {
		return errkind.Wrap(errkind.KindRender, err, "concat fragments")
	}
	return nil
}

// Burn rasterizes a subtitle document into the image stream. The filter
// is chosen by the subtitle file extension.
func (r *Runner) Burn(ctx context.Context, inPath, subtitlePath, outPath string) error {
	var vf string
	if strings.HasSuffix(strings.ToLower(subtitlePath), ".ass") {
		vf = "ass=" + escapeFilterPath(subtitlePath)
	} else {
		vf = "subtitles=" + escapeFilterPath(subtitlePath)
	}
	err := r.run(ctx, r.FFmpegPath,
		"-i", inPath,
		"-vf", vf,
		"-c:v", "libx264",
		"-c:a", "copy",
		"-y", outPath,
	)
	if err != nil {
		return errkind.Wrap(errkind.KindRender, err, "burn subtitles")
	}
	return nil
}

// ExtractAudio trims a window into a standalone mp3, used to feed the
// transcriber.
func (r *Runner) ExtractAudio(ctx context.Context, inPath string, offset, duration float64, outPath string) error {
	err := r.run(ctx, r.FFmpegPath,
		"-ss", formatSeconds(offset),
		"-t", formatSeconds(duration),
		"-i", inPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "4",
		"-y", outPath,
	)
	if err != nil {
		return errkind.Wrap(errkind.KindRender, err, "extract audio")
	}
	return nil
}

// SampleFrames writes up to count evenly spaced stills from the window
// into dir and returns their paths in order.
func (r *Runner) SampleFrames(ctx context.Context, inPath string, offset, window float64, count int, dir string) ([]string, error) {
	if count < 1 {
		count = 1
	}
	if window <= 0 {
		return nil, errkind.New(errkind.KindRender, "frame sampling needs a positive window")
	}
	fps := float64(count) / window
	pattern := filepath.Join(dir, "frame_%02d.jpg")
	err := r.run(ctx, r.FFmpegPath,
		"-ss", formatSeconds(offset),
		"-t", formatSeconds(window),
		"-i", inPath,
		"-vf", fmt.Sprintf("fps=%f", fps),
		"-frames:v", strconv.Itoa(count),
		"-y", pattern,
	)
	if err != nil {
		return nil, errkind.Wrap(errkind.KindRender, err, "sample frames")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, errkind.Wrap(errkind.KindIO, err, "list sampled frames")
	}
	sort.Strings(matches)
	return matches, nil
}

// CopyFile duplicates src to dst, used to preserve the caption-free
// master before any burn step.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "open copy source")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "create copy target")
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "copy file")
	}
	return out.Close()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// escapeFilterPath escapes the characters the subtitle filters treat
// specially in their argument.
func escapeFilterPath(p string) string {
	p = strings.ReplaceAll(p, `\`, `\\`)
	p = strings.ReplaceAll(p, ":", `\:`)
	p = strings.ReplaceAll(p, "'", `\'`)
	return p
}
