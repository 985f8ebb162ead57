// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dschwenke/clippy/internal/job"
)

type identityKey struct{}

// sessionCookie names the anonymous-session cookie.
const sessionCookie = "clippy_session"

// userHeader carries an authenticated user id set by the fronting auth
// layer. When present it wins over the session cookie.
const userHeader = "X-User-ID"

// withIdentity resolves the caller and ensures every anonymous visitor
// carries a session cookie.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id job.Identity

		if user := r.Header.Get(userHeader); user != "" {
			id = job.Identity{UserID: user}
		} else {
			session := ""
			if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
				session = c.Value
			}
			if session == "" {
				session = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookie,
					Value:    session,
					Path:     "/",
					MaxAge:   int((30 * 24 * time.Hour).Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			id = job.Identity{SessionID: session}
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the identity the middleware resolved.
func callerFrom(r *http.Request) job.Identity {
	if id, ok := r.Context().Value(identityKey{}).(job.Identity); ok {
		return id
	}
	return job.Identity{}
}
