package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/axtrace/chessapi/internal/engine"
)

// HealthResponse is the body of a health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Engine  string `json:"engine,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// HealthMonitor probes the engine session with a short ping.
type HealthMonitor struct {
	session Session
	timeout time.Duration
	log     zerolog.Logger
}

func NewHealthMonitor(session Session, pingTimeout time.Duration, log zerolog.Logger) *HealthMonitor {
	if pingTimeout <= 0 {
		pingTimeout = 10 * time.Millisecond
	}
	return &HealthMonitor{session: session, timeout: pingTimeout, log: log}
}

// CheckHealth starts the engine if needed and pings it.
func (h *HealthMonitor) CheckHealth(ctx context.Context) HealthResponse {
	if err := h.session.EnsureStarted(ctx); err != nil {
		return unhealthy(err.Error())
	}

	status, err := h.session.Ping(ctx, h.timeout)
	if status != engine.PingAlive {
		detail := status.String()
		if err != nil {
			detail = err.Error()
		}
		h.log.Warn().Str("ping", status.String()).Str("detail", detail).Msg("engine health check failed")
		return unhealthy(detail)
	}

	name := h.session.EngineName()
	if name == "" {
		name = "Stockfish"
	}
	return HealthResponse{Status: StatusOK, Engine: name}
}

// Status reports session counters without probing the engine.
func (h *HealthMonitor) Status() engine.Stats {
	return h.session.Stats()
}

func unhealthy(detail string) HealthResponse {
	return HealthResponse{Status: StatusError, Error: detail, Details: detail}
}
