// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/dschwenke/clippy/internal/bus"
	"github.com/dschwenke/clippy/internal/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect from the same origin as the app; a
	// fronting proxy enforces anything stricter.
	CheckOrigin: func(*http.Request) bool { return true },
}

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleProgressSocket streams a job's progress events until the job
// reaches a terminal event or the client disconnects.
func (s *Server) handleProgressSocket(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	logger := log.WithComponentFromContext(r.Context(), "ws")

	// The caller must be allowed to see the job before any upgrade.
	snap, err := s.deps.Jobs.Query(callerFrom(r), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	sub, err := s.deps.Bus.Subscribe(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Late subscribers get the current state immediately.
	first := bus.Event{
		JobID:    snap.ID,
		Kind:     bus.KindProgress,
		Progress: snap.Progress,
		Message:  snap.Message,
		State:    string(snap.State),
	}
	if err := writeEvent(conn, first); err != nil {
		return
	}
	if snap.State.IsTerminal() {
		return
	}

	pings := time.NewTicker(wsPingInterval)
	defer pings.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-pings.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				logger.Debug().Err(err).Str("job_id", jobID).Msg("websocket write failed")
				return
			}
			if ev.Kind == bus.KindComplete || ev.Kind == bus.KindError {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev bus.Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
