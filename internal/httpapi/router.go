package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"

	"github.com/axtrace/chessapi/internal/board"
	"github.com/axtrace/chessapi/internal/engine"
	"github.com/axtrace/chessapi/internal/service"
)

// Mover answers best-move requests.
type Mover interface {
	HandleMove(ctx context.Context, req service.MoveRequest) (service.MoveResponse, error)
}

// Prober answers health and status requests.
type Prober interface {
	CheckHealth(ctx context.Context) service.HealthResponse
	Status() engine.Stats
}

// Handler serves the chess API.
type Handler struct {
	moves  Mover
	health Prober
	log    zerolog.Logger
}

// maxMoveBody bounds a /bestmove request body.
const maxMoveBody = 8 << 10

// Options configures the router.
type Options struct {
	APIKey string
	// GzipMinSize is the smallest response body, in bytes, that is compressed
	// for clients accepting gzip.
	GzipMinSize int
}

// NewRouter builds the HTTP surface. Every route requires the API key.
func NewRouter(log zerolog.Logger, opts Options, moves Mover, health Prober) (http.Handler, error) {
	h := &Handler{moves: moves, health: health, log: log}

	compress, err := gzhttp.NewWrapper(gzhttp.MinSize(opts.GzipMinSize))
	if err != nil {
		return nil, fmt.Errorf("gzip wrapper: %w", err)
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return compress(next) })

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(opts.APIKey))
		r.Post("/bestmove/", h.bestMove)
		r.Post("/bestmove", h.bestMove)
		r.Get("/healthcheck", h.healthcheck)
		r.Get("/engine/status", h.engineStatus)
	})
	return r, nil
}

func (h *Handler) bestMove(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMoveBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "Could not read request body")
		return
	}

	req, fieldErrs := decodeMoveRequest(bytes.NewReader(body))
	if fieldErrs != nil {
		writeValidation(w, fieldErrs...)
		return
	}

	// A disconnect only stops the wait for the engine; a search that has
	// started runs to completion and its answer is dropped.
	resp, err := h.moves.HandleMove(r.Context(), req)
	if err != nil {
		var verr *board.ValidationError
		if errors.As(err, &verr) {
			writeValidation(w, fenError(verr))
			return
		}
		h.log.Error().Err(err).Str("rid", RequestIDFrom(r.Context())).Msg("best move")
		writeJSON(w, http.StatusOK, service.MoveResponse{Status: service.StatusError, Error: err.Error(), Details: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) healthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.CheckHealth(r.Context()))
}

func (h *Handler) engineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Status())
}
