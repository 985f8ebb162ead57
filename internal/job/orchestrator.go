// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dschwenke/clippy/internal/bus"
	"github.com/dschwenke/clippy/internal/caption"
	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/fetch"
	"github.com/dschwenke/clippy/internal/log"
	"github.com/dschwenke/clippy/internal/media"
	"github.com/dschwenke/clippy/internal/planner"
	"github.com/dschwenke/clippy/internal/registry"
	"github.com/dschwenke/clippy/internal/subtitle"
	"github.com/dschwenke/clippy/internal/transcribe"
)

// Capability interfaces the orchestrator is constructed with. Each maps
// to one concrete adapter in production and a stub in tests.

type Acquirer interface {
	Acquire(ctx context.Context, url string) (fetch.Result, error)
}

type SpeakerPlanner interface {
	Plan(ctx context.Context, mediaPath string, width, height int, start, duration float64) ([]planner.Speaker, error)
}

type Renderer interface {
	Probe(ctx context.Context, path string) (media.Info, error)
	RenderMaster(ctx context.Context, srcPath string, cuts []planner.Cut, speakers []planner.Speaker, outPath string) error
	Burn(ctx context.Context, inPath, subtitlePath, outPath string) error
}

type Regenerator interface {
	Regenerate(ctx context.Context, paths caption.Paths, edits []caption.Edit, clipDuration float64) (*subtitle.Document, error)
}

// UploadMeta describes the clip being published.
type UploadMeta struct {
	Title       string
	Description string
	Tags        []string
}

// Uploader pushes a finished clip to an external platform. Left nil
// when no platform credentials are configured.
type Uploader interface {
	Upload(ctx context.Context, path string, meta UploadMeta) (videoID, url string, err error)
}

type ClipRegistry interface {
	Save(ctx context.Context, rec *registry.Record) error
	Promote(ctx context.Context, sessionID, userID string) (int, error)
	Delete(ctx context.Context, jobID string) error
}

// Deps bundles the orchestrator's collaborators.
type Deps struct {
	Acquirer    Acquirer
	Planner     SpeakerPlanner
	Transcriber transcribe.Transcriber
	Renderer    Renderer
	Engine      Regenerator
	Uploader    Uploader
	Registry    ClipRegistry
	Bus         bus.Publisher

	ClipsDir        string
	AnonTTL         time.Duration
	DefaultDuration float64
	MaxDuration     float64
}

// Orchestrator owns the job map. All map mutations happen under mu;
// job field mutations happen only on the owning worker goroutine via
// the mutate helper.
type Orchestrator struct {
	deps Deps

	mu   sync.RWMutex
	jobs map[string]*Job

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs an Orchestrator. Defaults: 24 h anonymous TTL, 30 s
// clips capped at 180 s.
func New(deps Deps) *Orchestrator {
	if deps.AnonTTL <= 0 {
		deps.AnonTTL = 24 * time.Hour
	}
	if deps.DefaultDuration <= 0 {
		deps.DefaultDuration = 30
	}
	if deps.MaxDuration <= 0 {
		deps.MaxDuration = 180
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		deps:    deps,
		jobs:    make(map[string]*Job),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Shutdown stops accepting work and waits for running workers.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create accepts a clip request and starts its worker. Returns the new
// job id.
func (o *Orchestrator) Create(ctx context.Context, caller Identity, req Request) (string, error) {
	if err := caller.Validate(); err != nil {
		return "", err
	}
	if err := fetch.ValidateURL(req.URL); err != nil {
		return "", err
	}
	if req.Duration <= 0 {
		req.Duration = o.deps.DefaultDuration
	}
	if req.Duration > o.deps.MaxDuration {
		return "", errkind.New(errkind.KindInvalidInput, "duration %.0fs exceeds the %.0fs cap", req.Duration, o.deps.MaxDuration)
	}
	if req.Start != nil && *req.Start < 0 {
		return "", errkind.New(errkind.KindInvalidInput, "start offset must be nonnegative")
	}
	if req.End != nil && req.Start != nil && *req.End <= *req.Start {
		return "", errkind.New(errkind.KindInvalidInput, "end offset must be after start")
	}

	now := time.Now()
	j := &Job{
		ID:          uuid.NewString(),
		Owner:       caller,
		Request:     req,
		State:       StatePending,
		RegenStatus: RegenIdle,
		Message:     "queued",
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	o.mu.Lock()
	o.jobs[j.ID] = j
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runJob(j.ID)
	}()

	log.WithComponent("job").Info().
		Str("job_id", j.ID).
		Str("url", req.URL).
		Bool("anonymous", caller.Anonymous()).
		Msg("job accepted")
	return j.ID, nil
}

// Query returns a consistent snapshot after authorization.
func (o *Orchestrator) Query(caller Identity, jobID string) (Snapshot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	j, ok := o.jobs[jobID]
	if !ok {
		return Snapshot{}, errkind.New(errkind.KindNotFound, "job %s not found", jobID)
	}
	if !j.Owner.Authorizes(caller) {
		return Snapshot{}, errkind.New(errkind.KindUnauthorized, "job %s belongs to someone else", jobID)
	}
	return snapshotOf(j), nil
}

// Refresh returns the final clip URL with a cache-busting version tag
// plus the current captions.
func (o *Orchestrator) Refresh(caller Identity, jobID string) (string, []Caption, error) {
	snap, err := o.Query(caller, jobID)
	if err != nil {
		return "", nil, err
	}
	if snap.State != StateCompleted {
		return "", nil, errkind.New(errkind.KindInvalidInput, "job %s has no final clip yet", jobID)
	}
	url := fmt.Sprintf("/clips/%s?v=%d", filepath.Base(snap.Artifacts.FinalPath), time.Now().Unix())
	return url, snap.Captions, nil
}

// UpdateCaptions starts a caption regeneration for a completed job. At
// most one regeneration runs per job; concurrent requests get busy.
func (o *Orchestrator) UpdateCaptions(ctx context.Context, caller Identity, jobID string, edits []caption.Edit) error {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return errkind.New(errkind.KindNotFound, "job %s not found", jobID)
	}
	if !j.Owner.Authorizes(caller) {
		o.mu.Unlock()
		return errkind.New(errkind.KindUnauthorized, "job %s belongs to someone else", jobID)
	}
	if j.State != StateCompleted {
		o.mu.Unlock()
		return errkind.New(errkind.KindInvalidInput, "job %s is not completed", jobID)
	}
	if j.RegenStatus == RegenRunning {
		o.mu.Unlock()
		return errkind.New(errkind.KindBusy, "captions for job %s are already regenerating", jobID)
	}
	j.RegenStatus = RegenRunning
	j.UpdatedAt = time.Now()
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runRegen(jobID, edits)
	}()
	return nil
}

// Publish uploads a completed clip to the configured platform and
// records the result. Synchronous; uploads are rare and the caller
// wants the URL back.
func (o *Orchestrator) Publish(ctx context.Context, caller Identity, jobID string) (Publication, error) {
	if o.deps.Uploader == nil {
		return Publication{}, errkind.New(errkind.KindInvalidInput, "publishing is not configured")
	}

	snap, err := o.Query(caller, jobID)
	if err != nil {
		return Publication{}, err
	}
	if snap.State != StateCompleted {
		return Publication{}, errkind.New(errkind.KindInvalidInput, "job %s has no final clip yet", jobID)
	}
	if snap.Published != nil {
		return *snap.Published, nil
	}

	videoID, url, err := o.deps.Uploader.Upload(ctx, snap.Artifacts.FinalPath, UploadMeta{
		Title: snap.Title,
		Tags:  []string{"shorts", "clip"},
	})
	if err != nil {
		return Publication{}, err
	}
	pub := Publication{VideoID: videoID, URL: url}

	o.mutate(jobID, bus.KindProgress, func(j *Job) {
		j.Published = &pub
		j.Message = "published"
	})
	o.mirror(ctx, jobID)
	return pub, nil
}

// Promote rewrites every job owned by the session to the user, in
// memory and durably. Idempotent.
func (o *Orchestrator) Promote(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return errkind.New(errkind.KindInvalidInput, "promotion needs both session and user ids")
	}

	o.mu.Lock()
	for _, j := range o.jobs {
		if j.Owner.SessionID == sessionID && j.Owner.UserID == "" {
			j.Owner = Identity{UserID: userID}
			j.UpdatedAt = time.Now()
		}
	}
	o.mu.Unlock()

	if o.deps.Registry != nil {
		if _, err := o.deps.Registry.Promote(ctx, sessionID, userID); err != nil {
			return err
		}
	}
	return nil
}

// Dismiss removes a job from visibility. The id stays claimable by no
// one; artifact files are left for the retention sweep.
func (o *Orchestrator) Dismiss(ctx context.Context, caller Identity, jobID string) error {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if ok && !j.Owner.Authorizes(caller) {
		o.mu.Unlock()
		return errkind.New(errkind.KindUnauthorized, "job %s belongs to someone else", jobID)
	}
	delete(o.jobs, jobID)
	o.mu.Unlock()

	if o.deps.Registry != nil {
		return o.deps.Registry.Delete(ctx, jobID)
	}
	return nil
}

// PruneExpired drops anonymous terminal jobs older than the TTL from
// memory. Returns the number removed.
func (o *Orchestrator) PruneExpired(now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	removed := 0
	for id, j := range o.jobs {
		if j.Owner.Anonymous() && j.State.IsTerminal() && now.Sub(j.CreatedAt) > o.deps.AnonTTL {
			delete(o.jobs, id)
			removed++
		}
	}
	return removed
}

// mutate applies fn to the job under the lock and publishes the
// resulting progress event. Only workers call this for their own job.
func (o *Orchestrator) mutate(jobID string, kind bus.Kind, fn func(*Job)) {
	o.mu.Lock()
	j, ok := o.jobs[jobID]
	if !ok {
		o.mu.Unlock()
		return
	}
	fn(j)
	j.UpdatedAt = time.Now()
	ev := bus.Event{
		JobID:    jobID,
		Kind:     kind,
		Progress: j.Progress,
		Message:  j.Message,
		State:    string(j.State),
	}
	o.mu.Unlock()

	if o.deps.Bus != nil {
		pubCtx, cancel := context.WithTimeout(o.baseCtx, 2*time.Second)
		defer cancel()
		if err := o.deps.Bus.Publish(pubCtx, jobID, ev); err != nil {
			log.WithComponent("job").Debug().Err(err).Str("job_id", jobID).Msg("progress publish dropped")
		}
	}
}

