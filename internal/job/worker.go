// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/dschwenke/clippy/internal/bus"
	"github.com/dschwenke/clippy/internal/caption"
	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/media"
	"github.com/dschwenke/clippy/internal/metrics"
	"github.com/dschwenke/clippy/internal/peak"
	"github.com/dschwenke/clippy/internal/phrase"
	"github.com/dschwenke/clippy/internal/planner"
	"github.com/dschwenke/clippy/internal/registry"
	"github.com/dschwenke/clippy/internal/subtitle"
)

// Per-stage deadlines. External tools get long leashes; nothing runs
// unbounded.
const (
	fetchTimeout      = 15 * time.Minute
	planTimeout       = 2 * time.Minute
	renderTimeout     = 10 * time.Minute
	transcribeTimeout = 10 * time.Minute
	burnTimeout       = 10 * time.Minute
)

// runJob drives one job through the stage sequence. It is the only
// writer of the job's fields.
func (o *Orchestrator) runJob(jobID string) {
	ctx := log.ContextWithJobID(o.baseCtx, jobID)
	logger := log.WithComponentFromContext(ctx, "job")
	started := time.Now()

	fail := func(stage string, err error) {
		logger.Error().Err(err).Str("stage", stage).Msg("stage failed")
		o.mutate(jobID, bus.KindError, func(j *Job) {
			j.State = StateFailed
			j.Err = err.Error()
			j.Message = stage + " failed"
		})
		metrics.IncJobTerminal(string(StateFailed))
		o.mirror(ctx, jobID)
	}

	// downloading
	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.State = StateDownloading
		j.Progress = 5
		j.Message = "fetching source video"
	})
	req, owner := o.requestOf(jobID)

	fetchCtx, cancelFetch := context.WithTimeout(ctx, fetchTimeout)
	src, err := o.deps.Acquirer.Acquire(fetchCtx, req.URL)
	cancelFetch()
	if err != nil {
		fail("download", err)
		return
	}
	stageDone := time.Now()
	metrics.ObserveStage("download", stageDone.Sub(started).Seconds())

	// planning
	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.State = StatePlanning
		j.Progress = 25
		j.Message = "choosing clip window"
		j.Title = src.Title
		j.Slug = slugify(src.Title, j.ID)
	})

	planCtx, cancelPlan := context.WithTimeout(ctx, planTimeout)
	info, err := o.deps.Renderer.Probe(planCtx, src.LocalPath)
	if err != nil {
		cancelPlan()
		fail("planning", err)
		return
	}

	target := req.Duration
	if req.End != nil && req.Start != nil {
		target = *req.End - *req.Start
	}
	if target > info.Duration {
		target = info.Duration
	}

	var choice peak.Choice
	if req.Start != nil {
		choice = peak.Pinned(*req.Start)
		if choice.Start+target > info.Duration {
			choice.Start = info.Duration - target
			if choice.Start < 0 {
				choice.Start = 0
			}
		}
	} else {
		choice = peak.Pick(info.Duration, target)
	}

	speakers, err := o.deps.Planner.Plan(planCtx, src.LocalPath, info.Width, info.Height, choice.Start, target)
	cancelPlan()
	if err != nil {
		fail("planning", err)
		return
	}
	cuts := planner.Schedule(choice.Start, target, len(speakers))

	slug := o.slugOf(jobID)
	final := filepath.Join(o.deps.ClipsDir, slug+".mp4")
	master := filepath.Join(o.deps.ClipsDir, slug+"_no_captions.mp4")
	subPath := filepath.Join(o.deps.ClipsDir, slug+"_captions."+subtitle.FormatStyled.Ext())

	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.State = StateRendering
		j.Progress = 40
		j.Message = "rendering vertical master"
		j.ClipStart = choice.Start
		j.ClipLength = target
		j.Confidence = choice.Confidence
		j.Artifacts = Artifacts{
			FinalPath:    final,
			MasterPath:   master,
			SubtitlePath: subPath,
			Format:       subtitle.FormatStyled,
		}
	})
	metrics.ObserveStage("planning", time.Since(stageDone).Seconds())
	stageDone = time.Now()

	// rendering
	if err := os.MkdirAll(o.deps.ClipsDir, 0o755); err != nil {
		fail("rendering", errkind.Wrap(errkind.KindIO, err, "create clips dir"))
		return
	}
	renderCtx, cancelRender := context.WithTimeout(ctx, renderTimeout)
	err = o.deps.Renderer.RenderMaster(renderCtx, src.LocalPath, cuts, speakers, master)
	cancelRender()
	if err != nil {
		fail("rendering", err)
		return
	}
	metrics.ObserveStage("rendering", time.Since(stageDone).Seconds())
	stageDone = time.Now()

	// transcribing
	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.State = StateTranscribing
		j.Progress = 70
		j.Message = "transcribing speech"
	})

	trCtx, cancelTr := context.WithTimeout(ctx, transcribeTimeout)
	segments, err := o.deps.Transcriber.Segments(trCtx, src.LocalPath, choice.Start, target, true)
	cancelTr()
	if err != nil {
		fail("transcribing", err)
		return
	}

	phrases := phrase.Assemble(segments)
	events := subtitle.Normalize(phrase.Events(phrases, 0))
	doc := &subtitle.Document{Title: slug, Events: events}
	doc.EnsureStyles()

	if err := writeSubtitles(subPath, doc); err != nil {
		fail("transcribing", err)
		return
	}
	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.Progress = 85
		j.Message = "captions assembled"
		j.Captions = CaptionsFromDocument(doc)
	})
	metrics.ObserveStage("transcribing", time.Since(stageDone).Seconds())
	stageDone = time.Now()

	// burning
	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.State = StateBurning
		j.Progress = 90
		j.Message = "burning captions"
	})

	burnCtx, cancelBurn := context.WithTimeout(ctx, burnTimeout)
	if len(doc.Events) > 0 {
		err = o.deps.Renderer.Burn(burnCtx, master, subPath, final)
	} else {
		// Nothing to burn; the master is the final clip.
		err = media.CopyFile(master, final)
	}
	cancelBurn()
	if err != nil {
		fail("burning", err)
		return
	}
	metrics.ObserveStage("burning", time.Since(stageDone).Seconds())

	o.mutate(jobID, bus.KindComplete, func(j *Job) {
		j.State = StateCompleted
		j.Progress = 100
		j.Message = "clip ready"
	})
	metrics.IncJobTerminal(string(StateCompleted))
	o.mirror(ctx, jobID)

	logger.Info().
		Str("slug", slug).
		Float64("start", choice.Start).
		Float64("duration", target).
		Bool("anonymous", owner.Anonymous()).
		Dur("elapsed", time.Since(started)).
		Msg("job completed")
}

// runRegen drives one caption regeneration for a completed job.
func (o *Orchestrator) runRegen(jobID string, edits []caption.Edit) {
	ctx := log.ContextWithJobID(o.baseCtx, jobID)
	logger := log.WithComponentFromContext(ctx, "job")

	o.mutate(jobID, bus.KindRegenUpdate, func(j *Job) {
		j.Message = "regenerating captions"
	})

	snap, ok := o.snapshot(jobID)
	if !ok {
		return
	}

	regenCtx, cancel := context.WithTimeout(ctx, burnTimeout)
	doc, err := o.deps.Engine.Regenerate(regenCtx, caption.Paths{
		Master:   snap.Artifacts.MasterPath,
		Final:    snap.Artifacts.FinalPath,
		Subtitle: snap.Artifacts.SubtitlePath,
	}, edits, snap.ClipLength)
	cancel()

	if err != nil {
		logger.Error().Err(err).Msg("caption regeneration failed")
		o.mutate(jobID, bus.KindRegenError, func(j *Job) {
			j.RegenStatus = RegenFailed
			j.Message = "caption regeneration failed"
		})
		return
	}

	o.mutate(jobID, bus.KindRegenComplete, func(j *Job) {
		j.RegenStatus = RegenIdle
		j.Message = "captions regenerated"
		j.Captions = CaptionsFromDocument(doc)
	})
	o.mirror(ctx, jobID)
	logger.Info().Int("events", len(doc.Events)).Msg("caption regeneration complete")
}

// mirror persists the job's durable record.
func (o *Orchestrator) mirror(ctx context.Context, jobID string) {
	if o.deps.Registry == nil {
		return
	}
	snap, ok := o.snapshot(jobID)
	if !ok {
		return
	}

	blob, err := json.Marshal(snap)
	if err != nil {
		log.WithComponent("job").Warn().Err(err).Str("job_id", jobID).Msg("state blob encode failed")
		return
	}
	rec := &registry.Record{
		JobID:           snap.ID,
		Owner:           snap.Owner.Key(),
		SessionOwned:    snap.Owner.Anonymous(),
		SourceURL:       snap.Request.URL,
		FinalPath:       snap.Artifacts.FinalPath,
		SubtitlePath:    snap.Artifacts.SubtitlePath,
		SerializedState: blob,
		CreatedAt:       snap.CreatedAt,
	}
	if rec.SessionOwned {
		expires := snap.CreatedAt.Add(o.deps.AnonTTL)
		rec.ExpiresAt = &expires
	}
	if err := o.deps.Registry.Save(ctx, rec); err != nil {
		log.WithComponent("job").Warn().Err(err).Str("job_id", jobID).Msg("registry mirror failed")
	}
}

func (o *Orchestrator) requestOf(jobID string) (Request, Identity) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if j, ok := o.jobs[jobID]; ok {
		return j.Request, j.Owner
	}
	return Request{}, Identity{}
}

func (o *Orchestrator) slugOf(jobID string) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if j, ok := o.jobs[jobID]; ok {
		return j.Slug
	}
	return ""
}

func (o *Orchestrator) snapshot(jobID string) (Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return snapshotOf(j), true
}

func writeSubtitles(path string, doc *subtitle.Document) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return errkind.Wrap(errkind.KindIO, err, "create subtitle document")
	}
	defer f.Close()
	if err := subtitle.WriteStyled(f, doc); err != nil {
		return errkind.Wrap(errkind.KindIO, err, "write subtitle document")
	}
	return f.Close()
}
