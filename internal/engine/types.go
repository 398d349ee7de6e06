package engine

import (
	"time"

	"github.com/axtrace/chessapi/internal/board"
)

// Limit bounds one search. The engine stops at whichever bound triggers
// first.
type Limit struct {
	Depth int
	Time  time.Duration
	Nodes int
}

// Kind is the shape of a successful analysis.
type Kind int

const (
	KindMove     Kind = iota // engine proposed a move
	KindGameOver             // position is terminal, engine not consulted
	KindNoMoves              // engine reported no candidate move
)

func (k Kind) String() string {
	switch k {
	case KindMove:
		return "move"
	case KindGameOver:
		return "game_over"
	case KindNoMoves:
		return "no_moves"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Analyze call.
type Result struct {
	Kind   Kind
	Move   string            // normalized UCI move, KindMove only
	Ponder string            // expected reply, if the engine gave one
	Reason board.Termination // KindGameOver only

	// From the last info lines of the search.
	Depth   int
	Nodes   int
	ScoreCP int
	Mate    int
}

// PingStatus is the result of a liveness check.
type PingStatus int

const (
	PingAlive PingStatus = iota
	PingTimeout
	PingDead
)

func (s PingStatus) String() string {
	switch s {
	case PingAlive:
		return "alive"
	case PingTimeout:
		return "timeout"
	default:
		return "dead"
	}
}
