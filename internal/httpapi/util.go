package httpapi

import (
	"mime"
	"net/http"

	"github.com/HaKr/token-server/helper"
)

// errorResponse is the body shape of the errors the handlers write
// themselves (415/422/500), grounded on http/util.go's ErrorResponse. The
// 404 and 405 responses come from http.ServeMux and do not use it.
type errorResponse struct {
	Errors []string `json:"errors"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	helper.JSONResponse(w, status, errorResponse{Errors: []string{message}})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	helper.JSONResponse(w, status, data)
}

func respondText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func respondAccepted(w http.ResponseWriter) {
	w.WriteHeader(http.StatusAccepted)
}

// hasJSONContentType accepts "application/json" with or without a
// trailing parameter such as "; charset=utf-8".
func hasJSONContentType(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
