// Package service turns HTTP-level requests into engine session calls and
// maps every outcome to a response shape.
package service

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/axtrace/chessapi/internal/board"
	"github.com/axtrace/chessapi/internal/engine"
)

// Response statuses.
const (
	StatusOK       = "ok"
	StatusGameOver = "game_over"
	StatusNoMoves  = "no_moves"
	StatusError    = "error"
)

// Session is the part of *engine.Session the service layer uses.
type Session interface {
	EnsureStarted(ctx context.Context) error
	Analyze(ctx context.Context, pos board.Position, limit engine.Limit) (engine.Result, error)
	Ping(ctx context.Context, timeout time.Duration) (engine.PingStatus, error)
	EngineName() string
	Stats() engine.Stats
}

// Limits bounds what a client may ask for. Times are in seconds.
type Limits struct {
	DefaultDepth int
	MaxDepth     int
	DefaultTime  float64
	MinTime      float64
	MaxTime      float64
	MaxNodes     int
}

// DefaultLimits are the bounds the service ships with.
var DefaultLimits = Limits{
	DefaultDepth: 10,
	MaxDepth:     30,
	DefaultTime:  0.01,
	MinTime:      0.01,
	MaxTime:      2.0,
	MaxNodes:     100,
}

// MoveRequest asks for the best move in FEN. Nil fields take the defaults.
type MoveRequest struct {
	FEN   string   `json:"fen"`
	Depth *int     `json:"depth,omitempty"`
	Time  *float64 `json:"time,omitempty"`
}

// MoveResponse is the body of a best-move answer.
type MoveResponse struct {
	Status   string   `json:"status"`
	BestMove string   `json:"best_move,omitempty"`
	UsedTime *float64 `json:"used_time,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Error    string   `json:"error,omitempty"`
	Details  string   `json:"details,omitempty"`
}

// Coordinator handles best-move requests against one engine session.
type Coordinator struct {
	session Session
	limits  Limits
	log     zerolog.Logger
}

func NewCoordinator(session Session, limits Limits, log zerolog.Logger) *Coordinator {
	return &Coordinator{session: session, limits: limits, log: log}
}

// HandleMove validates req and asks the engine for a move. The only error it
// returns is a *board.ValidationError; every engine outcome, failures
// included, is a MoveResponse.
func (c *Coordinator) HandleMove(ctx context.Context, req MoveRequest) (MoveResponse, error) {
	pos, err := board.Validate(req.FEN)
	if err != nil {
		return MoveResponse{}, err
	}

	depth := c.limits.DefaultDepth
	if req.Depth != nil {
		depth = *req.Depth
	}
	depth = min(max(depth, 1), c.limits.MaxDepth)

	seconds := c.limits.DefaultTime
	if req.Time != nil && !math.IsNaN(*req.Time) {
		seconds = *req.Time
	}
	seconds = clampTime(seconds, c.limits.MinTime, c.limits.MaxTime)

	if err := c.session.EnsureStarted(ctx); err != nil {
		c.log.Error().Err(err).Msg("engine initialization failed")
		return MoveResponse{
			Status:  StatusError,
			Details: "Engine initialization failed: " + err.Error(),
		}, nil
	}

	limit := engine.Limit{
		Depth: depth,
		Time:  time.Duration(seconds * float64(time.Second)),
		Nodes: c.limits.MaxNodes,
	}
	res, err := c.session.Analyze(ctx, pos, limit)
	if err != nil {
		c.log.Warn().Err(err).Str("fen", pos.FEN()).Msg("analysis failed")
		return MoveResponse{Status: StatusError, Error: err.Error(), Details: err.Error()}, nil
	}

	switch res.Kind {
	case engine.KindMove:
		return MoveResponse{Status: StatusOK, BestMove: res.Move, UsedTime: &seconds}, nil
	case engine.KindGameOver:
		return MoveResponse{Status: StatusGameOver, Error: "Game is over", Reason: string(res.Reason)}, nil
	case engine.KindNoMoves:
		return MoveResponse{Status: StatusNoMoves, Error: "No legal moves available"}, nil
	default:
		return MoveResponse{Status: StatusError, Error: "unexpected analysis result", Details: res.Kind.String()}, nil
	}
}

// clampTime silently moves t into [lo, hi].
func clampTime(t, lo, hi float64) float64 {
	return math.Min(math.Max(t, lo), hi)
}
