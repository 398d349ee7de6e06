package board

import (
	"github.com/notnil/chess"
)

// Termination names why a game is over.
type Termination string

const (
	Checkmate            Termination = "CHECKMATE"
	Stalemate            Termination = "STALEMATE"
	InsufficientMaterial Termination = "INSUFFICIENT_MATERIAL"
	SeventyFiveMoves     Termination = "SEVENTYFIVE_MOVES"
	FivefoldRepetition   Termination = "FIVEFOLD_REPETITION"
)

// Terminal reports whether no further move is meaningful in pos. Reasons
// are ranked checkmate, insufficient material, stalemate, 75-move rule,
// fivefold repetition.
//
// Positions with exactly one king per side go through notnil/chess for mate
// and the move-count rules. Any other king layout is outside what a rules
// library accepts, so only the material test is applied and everything else
// is left to the engine.
func Terminal(pos Position) (Termination, bool) {
	insufficient := insufficientMaterial(pos)
	if pos.Count('K') != 1 || pos.Count('k') != 1 {
		if insufficient {
			return InsufficientMaterial, true
		}
		return "", false
	}

	opt, err := chess.FEN(pos.FEN())
	if err != nil {
		// Structurally valid but rejected by the library; only material
		// can still end it here.
		if insufficient {
			return InsufficientMaterial, true
		}
		return "", false
	}
	method := chess.NewGame(opt).Method()

	switch {
	case method == chess.Checkmate:
		return Checkmate, true
	case insufficient:
		return InsufficientMaterial, true
	case method == chess.Stalemate:
		return Stalemate, true
	case method == chess.SeventyFiveMoveRule:
		return SeventyFiveMoves, true
	case method == chess.FivefoldRepetition:
		return FivefoldRepetition, true
	}
	return "", false
}

// insufficientMaterial reports whether neither side can ever mate.
func insufficientMaterial(pos Position) bool {
	return sideInsufficient(pos, White) && sideInsufficient(pos, Black)
}

// sideInsufficient reports whether c cannot mate with what is on the board:
// a lone king, king and one knight against nothing but a king and queens,
// or bishops all on one square color with no knights or pawns anywhere.
func sideInsufficient(pos Position, c Color) bool {
	own := func(pc Piece) bool {
		if pc == 0 {
			return false
		}
		white := pc >= 'A' && pc <= 'Z'
		return white == (c == White)
	}
	lower := func(pc Piece) Piece {
		if pc >= 'A' && pc <= 'Z' {
			return pc + ('a' - 'A')
		}
		return pc
	}

	var ownCount, knights, bishops, otherNonKingQueen int
	var anyKnight, anyPawn, light, dark bool
	for sq, pc := range pos.Squares {
		if pc == 0 {
			continue
		}
		kind := lower(pc)
		switch kind {
		case 'n':
			anyKnight = true
		case 'p':
			anyPawn = true
		case 'b':
			if (sq/8+sq%8)%2 == 0 {
				dark = true
			} else {
				light = true
			}
		}
		if !own(pc) {
			if kind != 'k' && kind != 'q' {
				otherNonKingQueen++
			}
			continue
		}
		ownCount++
		switch kind {
		case 'p', 'r', 'q':
			return false
		case 'n':
			knights++
		case 'b':
			bishops++
		}
	}

	if knights > 0 {
		return ownCount <= 2 && otherNonKingQueen == 0
	}
	if bishops > 0 {
		return !(light && dark) && !anyKnight && !anyPawn
	}
	return true
}
