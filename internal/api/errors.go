// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/dschwenke/clippy/internal/errkind"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch errkind.KindOf(err) {
	case errkind.KindInvalidInput, errkind.KindParse:
		code = http.StatusBadRequest
	case errkind.KindUnauthorized:
		code = http.StatusForbidden
	case errkind.KindNotFound:
		code = http.StatusNotFound
	case errkind.KindBusy:
		code = http.StatusConflict
	case errkind.KindFetch, errkind.KindTranscribe, errkind.KindRender:
		code = http.StatusBadGateway
	}
	writeJSON(w, code, map[string]string{
		"error": err.Error(),
		"kind":  string(errkind.KindOf(err)),
	})
}
