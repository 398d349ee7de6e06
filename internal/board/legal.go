package board

import (
	"errors"
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// ErrNoMoveGen is returned for positions the move generator cannot take,
// such as a side without exactly one king.
var ErrNoMoveGen = errors.New("position not supported by move generator")

// LegalMoves lists the legal moves of pos in UCI notation.
func LegalMoves(pos Position) ([]string, error) {
	if pos.Count('K') != 1 || pos.Count('k') != 1 {
		return nil, ErrNoMoveGen
	}
	gs, err := pgn.NewGame(pos.FEN())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoMoveGen, err)
	}
	mvs := pgn.GenerateLegalMoves(gs)
	out := make([]string, 0, len(mvs))
	for _, mv := range mvs {
		out = append(out, mv.String())
	}
	return out, nil
}

// IsLegal reports whether the UCI move uci can be played in pos.
func IsLegal(pos Position, uci string) (bool, error) {
	moves, err := LegalMoves(pos)
	if err != nil {
		return false, err
	}
	for _, m := range moves {
		if m == uci {
			return true, nil
		}
	}
	return false, nil
}
