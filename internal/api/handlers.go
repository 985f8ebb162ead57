// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/dschwenke/clippy/internal/caption"
	"github.com/dschwenke/clippy/internal/errkind"
	"github.com/dschwenke/clippy/internal/job"
)

// createRequest is the clip order payload.
type createRequest struct {
	URL      string   `json:"url"`
	Duration float64  `json:"duration,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	End      *float64 `json:"end,omitempty"`
}

// clipResponse is the client projection of a job.
type clipResponse struct {
	JobID       string        `json:"job_id"`
	State       string        `json:"state"`
	Progress    int           `json:"progress"`
	Message     string        `json:"message,omitempty"`
	RegenStatus string        `json:"regen_status,omitempty"`
	Error       string        `json:"error,omitempty"`
	Title       string        `json:"title,omitempty"`
	VideoURL    string        `json:"video_url,omitempty"`
	ClipStart   float64       `json:"clip_start,omitempty"`
	ClipLength  float64       `json:"clip_length,omitempty"`
	Confidence  float64       `json:"confidence,omitempty"`
	Captions    []job.Caption `json:"captions,omitempty"`
	Anonymous   bool          `json:"anonymous"`
}

func clipResponseOf(snap job.Snapshot) clipResponse {
	out := clipResponse{
		JobID:       snap.ID,
		State:       string(snap.State),
		Progress:    snap.Progress,
		Message:     snap.Message,
		RegenStatus: string(snap.RegenStatus),
		Error:       snap.Err,
		Title:       snap.Title,
		ClipStart:   snap.ClipStart,
		ClipLength:  snap.ClipLength,
		Confidence:  snap.Confidence,
		Captions:    snap.Captions,
		Anonymous:   snap.Anonymous,
	}
	if snap.State == job.StateCompleted && snap.Artifacts.FinalPath != "" {
		out.VideoURL = "/clips/" + filepath.Base(snap.Artifacts.FinalPath)
	}
	return out
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errkind.Wrap(errkind.KindInvalidInput, err, "decode request"))
		return
	}

	id, err := s.deps.Jobs.Create(r.Context(), callerFrom(r), job.Request{
		URL:      req.URL,
		Duration: req.Duration,
		Start:    req.Start,
		End:      req.End,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Jobs.Query(callerFrom(r), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clipResponseOf(snap))
}

// handleList returns the caller's durable clips. Only anonymous
// sessions keep a registry listing; signed-in users browse through
// their own account surface.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r)
	if !caller.Anonymous() || s.deps.Clips == nil {
		writeJSON(w, http.StatusOK, map[string]any{"clips": []any{}})
		return
	}

	records, err := s.deps.Clips.ListBySession(r.Context(), caller.SessionID, 10)
	if err != nil {
		writeError(w, err)
		return
	}

	type listEntry struct {
		JobID     string `json:"job_id"`
		SourceURL string `json:"source_url"`
		VideoURL  string `json:"video_url,omitempty"`
		CreatedAt string `json:"created_at"`
		ExpiresAt string `json:"expires_at,omitempty"`
	}
	out := make([]listEntry, 0, len(records))
	for _, rec := range records {
		e := listEntry{
			JobID:     rec.JobID,
			SourceURL: rec.SourceURL,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if rec.FinalPath != "" {
			e.VideoURL = "/clips/" + filepath.Base(rec.FinalPath)
		}
		if rec.ExpiresAt != nil {
			e.ExpiresAt = rec.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
		}
		out = append(out, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"clips": out})
}

func (s *Server) handleUpdateCaptions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Captions []caption.Edit `json:"captions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errkind.Wrap(errkind.KindInvalidInput, err, "decode request"))
		return
	}

	if err := s.deps.Jobs.UpdateCaptions(r.Context(), callerFrom(r), chi.URLParam(r, "jobID"), req.Captions); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "regenerating"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	url, captions, err := s.deps.Jobs.Refresh(callerFrom(r), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"video_url": url,
		"captions":  captions,
	})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	pub, err := s.deps.Jobs.Publish(r.Context(), callerFrom(r), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Jobs.Dismiss(r.Context(), callerFrom(r), chi.URLParam(r, "jobID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePromote moves the caller's anonymous clips to their account.
// Needs both the user header and the session cookie.
func (s *Server) handlePromote(w http.ResponseWriter, r *http.Request) {
	user := r.Header.Get(userHeader)
	if user == "" {
		writeError(w, errkind.New(errkind.KindUnauthorized, "promotion needs a signed-in user"))
		return
	}
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		writeError(w, errkind.New(errkind.KindInvalidInput, "promotion needs a session cookie"))
		return
	}

	if err := s.deps.Jobs.Promote(r.Context(), c.Value, user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "promoted"})
}
