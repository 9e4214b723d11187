// Package httpapi is the HTTP dispatcher of spec §4.2/§6 (C6): it
// translates the wire operations onto internal/token.Store, grounded on
// http/handler.go's
// mux-plus-ServeHTTP shape but built on the method-routing ServeMux that
// shipped with Go 1.22, so no third-party router is needed for dispatch
// itself.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HaKr/token-server/internal/token"
	"github.com/HaKr/token-server/logger"
)

// Properties bundles everything a handler needs, grounded on
// http/handler.go's HandlerProperties. Log is the concrete
// *logger.GatedLogger (see internal/token.New's doc comment for why
// collaborators take the concrete type rather than the logger.Logger
// interface).
type Properties struct {
	Store           *token.Store
	Log             *logger.GatedLogger
	DumpEnabled     bool
	ShutdownEnabled bool
	// Shutdown is invoked by GET /shutdown when ShutdownEnabled is true; it
	// is expected to cancel the server's run context (cmd/server wires it
	// to the listener's shutdown trigger).
	Shutdown func()
}

// Handler builds the top-level http.Handler for the token server, wiring
// every route named in spec §6's endpoint table. Unregistered paths fall
// through to ServeMux's default 404, and a path registered under a
// different method falls through to its default 405 with an Allow header
// — exactly the "404 or 405 respectively" spec §6 calls for.
func Handler(p *Properties) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", p.handleCreate)
	mux.HandleFunc("PUT /token", p.handleRotate)
	mux.HandleFunc("DELETE /token", p.handleRemove)
	mux.HandleFunc("GET /ping", p.handlePing)

	if p.DumpEnabled {
		mux.HandleFunc("HEAD /dump", p.handleDump)
	}
	if p.ShutdownEnabled {
		mux.HandleFunc("GET /shutdown", p.handleShutdown)
	}

	return withMiddleware(mux, p.Log)
}

type createRequest struct {
	Meta json.RawMessage `json:"meta"`
}

func (p *Properties) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r) {
		respondError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	meta, err := token.DecodeMetadata(req.Meta)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := p.Store.Create(meta)
	if err != nil {
		p.logError("create token failed", err)
		respondError(w, http.StatusInternalServerError, "token creation failed")
		return
	}

	respondText(w, http.StatusOK, id)
}

type rotateRequest struct {
	Token string          `json:"token"`
	Meta  json.RawMessage `json:"meta"`
}

type rotatePayload struct {
	Token string         `json:"token"`
	Meta  token.Metadata `json:"meta"`
}

type rotateEnvelope struct {
	Ok  *rotatePayload `json:"Ok,omitempty"`
	Err string         `json:"Err,omitempty"`
}

// handleRotate is where spec §4.3's force_media_error hook is realized:
// the content-type check happens before the body is touched, so a wrong
// media type never reaches the store.
func (p *Properties) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r) {
		respondError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req rotateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	var overlay token.Metadata
	hasOverlay := len(req.Meta) > 0 && string(req.Meta) != "null"
	if hasOverlay {
		decoded, err := token.DecodeMetadata(req.Meta)
		if err != nil {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		overlay = decoded
	}

	newID, merged, err := p.Store.Rotate(req.Token, overlay, hasOverlay)
	switch {
	case errors.Is(err, token.ErrInvalidToken):
		if p.Log != nil {
			p.Log.Info("rotate rejected", logger.String("reason", token.ErrInvalidToken.Error()))
		}
		respondJSON(w, http.StatusOK, rotateEnvelope{Err: "InvalidToken"})
	case err != nil:
		p.logError("rotate token failed", err)
		respondError(w, http.StatusInternalServerError, "token rotation failed")
	default:
		respondJSON(w, http.StatusOK, rotateEnvelope{Ok: &rotatePayload{Token: newID, Meta: merged}})
	}
}

type removeRequest struct {
	Token string `json:"token"`
}

func (p *Properties) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !hasJSONContentType(r) {
		respondError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req removeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, "malformed request body")
		return
	}

	p.Store.Remove(req.Token)
	respondAccepted(w)
}

// handleDump logs a snapshot of every live entry and acknowledges with 202
// (spec §4.4: dump is an administrative side-channel, not a query — the
// caller gets the data from the log, not the response body).
func (p *Properties) handleDump(w http.ResponseWriter, r *http.Request) {
	entries := p.Store.Dump(timeNow())

	report, err := json.Marshal(entries)
	if err != nil {
		p.logError("dump marshal failed", err)
	} else if p.Log != nil {
		p.Log.Debug("DUMP", logger.Int("entries", len(entries)), logger.String("report", string(report)))
	}

	respondAccepted(w)
}

func (p *Properties) logError(msg string, err error) {
	if p.Log != nil {
		p.Log.Error(msg, logger.Err(err))
	}
}

func (p *Properties) handlePing(w http.ResponseWriter, r *http.Request) {
	respondText(w, http.StatusOK, "pong")
}

func (p *Properties) handleShutdown(w http.ResponseWriter, r *http.Request) {
	respondText(w, http.StatusOK, "shutting down")
	if p.Shutdown != nil {
		p.Shutdown()
	}
}
