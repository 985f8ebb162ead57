// SPDX-License-Identifier: MIT

// Package job owns the clip-production lifecycle: accepting requests,
// driving the background stages, authorizing access and fanning out
// progress.
package job

import (
	"crypto/sha1" // #nosec G505 -- slug suffix, not security
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/subtitle"
)

// State is the client-visible job lifecycle.
type State string

const (
	StatePending      State = "pending"
	StateDownloading  State = "downloading"
	StatePlanning     State = "planning"
	StateRendering    State = "rendering"
	StateTranscribing State = "transcribing"
	StateBurning      State = "burning"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// IsTerminal reports whether the state is final.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// RegenStatus is the caption-regeneration substate of a completed job.
type RegenStatus string

const (
	RegenIdle    RegenStatus = "idle"
	RegenRunning RegenStatus = "regenerating"
	RegenFailed  RegenStatus = "regen_failed"
)

// Identity is the caller: exactly one of user id or anonymous session
// id is set.
type Identity struct {
	UserID    string
	SessionID string
}

// Validate enforces the exactly-one rule.
func (id Identity) Validate() error {
	if (id.UserID == "") == (id.SessionID == "") {
		return errkind.New(errkind.KindInvalidInput, "caller must present exactly one of user id or session id")
	}
	return nil
}

// Anonymous reports whether the identity is a browser session.
func (id Identity) Anonymous() bool { return id.UserID == "" }

// Key returns the owning id string.
func (id Identity) Key() string {
	if id.UserID != "" {
		return id.UserID
	}
	return id.SessionID
}

// Authorizes reports whether caller may act on a job owned by owner.
func (owner Identity) Authorizes(caller Identity) bool {
	if owner.UserID != "" {
		return caller.UserID == owner.UserID
	}
	return caller.SessionID != "" && caller.SessionID == owner.SessionID
}

// Request is the clip order.
type Request struct {
	URL      string
	Duration float64
	Start    *float64
	End      *float64
}

// Artifacts locates a job's files on disk.
type Artifacts struct {
	FinalPath    string
	MasterPath   string
	SubtitlePath string
	Format       subtitle.Format
}

// Caption is the client projection of one subtitle event.
type Caption struct {
	Index     int    `json:"index"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// CaptionsFromDocument projects a subtitle document for clients.
func CaptionsFromDocument(doc *subtitle.Document) []Caption {
	out := make([]Caption, 0, len(doc.Events))
	for _, e := range doc.Events {
		out = append(out, Caption{
			Index:     e.Index,
			Speaker:   e.Speaker,
			Text:      e.Text,
			StartTime: subtitle.FormatASSTime(e.Start),
			EndTime:   subtitle.FormatASSTime(e.End),
		})
	}
	return out
}

// Publication records where a clip went after upload.
type Publication struct {
	VideoID string `json:"video_id"`
	URL     string `json:"url"`
}

// Job is one clip-production workflow. Only the worker goroutine bound
// to the id mutates it; readers take value snapshots under the
// orchestrator lock.
type Job struct {
	ID          string
	Slug        string
	Owner       Identity
	Request     Request
	Title       string
	State       State
	Progress    int
	Message     string
	RegenStatus RegenStatus
	Err         string
	Artifacts   Artifacts
	Published   *Publication
	Captions    []Caption
	ClipStart   float64
	ClipLength  float64
	Confidence  float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Snapshot is a consistent copy of a job for readers.
type Snapshot struct {
	Job
	Anonymous bool
}

func snapshotOf(j *Job) Snapshot {
	copied := *j
	copied.Captions = append([]Caption(nil), j.Captions...)
	if j.Published != nil {
		p := *j.Published
		copied.Published = &p
	}
	return Snapshot{Job: copied, Anonymous: j.Owner.Anonymous()}
}

// slugify builds the filesystem slug for a job from its source title
// and id: "never-gonna-give-you-up-3fa92b".
func slugify(title, jobID string) string {
	s := strings.ToLower(title)

	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && r < 128, unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.TrimRight(slug[:50], "-")
	}
	if slug == "" {
		slug = "clip"
	}

	sum := sha1.Sum([]byte(jobID)) // #nosec G401
	return slug + "-" + hex.EncodeToString(sum[:])[:6]
}
