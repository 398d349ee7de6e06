package board

import (
	"fmt"
	"strconv"
	"strings"
)

// Color is the side to move.
type Color byte

const (
	White Color = 'w'
	Black Color = 'b'
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Piece is a FEN piece letter (uppercase white, lowercase black) or 0 for an
// empty square.
type Piece byte

const pieceLetters = "PNBRQKpnbrqk"

// Position is a structurally validated FEN.
type Position struct {
	Squares   [64]Piece // a1=0 ... h8=63
	Turn      Color
	Castling  string // "-" or rights letters
	EnPassant string // "-" or a square such as "e3"
	HalfMove  int
	FullMove  int

	fen string
}

// FEN returns the string the position was parsed from, with surrounding
// whitespace removed.
func (p Position) FEN() string {
	return p.fen
}

// Count returns how many squares hold the given piece.
func (p Position) Count(pc Piece) int {
	n := 0
	for _, sq := range p.Squares {
		if sq == pc {
			n++
		}
	}
	return n
}

// ValidationError describes why a FEN was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid FEN: " + e.Reason
	}
	return fmt.Sprintf("invalid FEN %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate parses a six-field FEN and checks that it is structurally
// well formed. It does not check whether the position is reachable, whether
// the side not to move is in check, or how many kings there are.
func Validate(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	fields := strings.Fields(fen)
	if len(fields) != 6 {
		return Position{}, invalid("", "expected 6 fields, got %d", len(fields))
	}

	pos := Position{fen: fen}
	if err := parsePlacement(fields[0], &pos.Squares); err != nil {
		return Position{}, err
	}

	switch fields[1] {
	case "w":
		pos.Turn = White
	case "b":
		pos.Turn = Black
	default:
		return Position{}, invalid("side to move", "expected 'w' or 'b', got %q", fields[1])
	}

	if err := checkCastling(fields[2]); err != nil {
		return Position{}, err
	}
	pos.Castling = fields[2]

	if err := checkEnPassant(fields[3]); err != nil {
		return Position{}, err
	}
	pos.EnPassant = fields[3]

	var err error
	if pos.HalfMove, err = parseCounter("halfmove clock", fields[4]); err != nil {
		return Position{}, err
	}
	if pos.FullMove, err = parseCounter("fullmove number", fields[5]); err != nil {
		return Position{}, err
	}

	return pos, nil
}

// parsePlacement fills squares from the first FEN field, which lists ranks
// 8 down to 1.
func parsePlacement(field string, squares *[64]Piece) error {
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return invalid("piece placement", "expected 8 ranks, got %d", len(ranks))
	}

	for i, rankStr := range ranks {
		rank := 7 - i
		file := 0
		prevDigit := false
		for _, c := range rankStr {
			switch {
			case c >= '1' && c <= '8':
				if prevDigit {
					return invalid("piece placement", "two consecutive digits in rank %d", rank+1)
				}
				prevDigit = true
				file += int(c - '0')
			case strings.ContainsRune(pieceLetters, c):
				prevDigit = false
				if file < 8 {
					squares[rank*8+file] = Piece(c)
				}
				file++
			default:
				return invalid("piece placement", "unknown piece symbol %q in rank %d", c, rank+1)
			}
			if file > 8 {
				return invalid("piece placement", "rank %d has more than 8 files", rank+1)
			}
		}
		if file != 8 {
			return invalid("piece placement", "rank %d has %d files, expected 8", rank+1, file)
		}
	}
	return nil
}

func checkCastling(field string) error {
	if field == "-" {
		return nil
	}
	seen := make(map[rune]bool, len(field))
	for _, c := range field {
		ok := strings.ContainsRune("KQkq", c) || (c >= 'A' && c <= 'H') || (c >= 'a' && c <= 'h')
		if !ok {
			return invalid("castling", "unexpected character %q", c)
		}
		if seen[c] {
			return invalid("castling", "duplicate right %q", c)
		}
		seen[c] = true
	}
	return nil
}

func checkEnPassant(field string) error {
	if field == "-" {
		return nil
	}
	// Any square name is structurally valid; an impossible target only
	// means no en-passant capture exists.
	if _, err := ParseSquare(field); err != nil {
		return invalid("en passant", "%v", err)
	}
	return nil
}

func parseCounter(name, field string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, invalid(name, "not a number: %q", field)
	}
	if n < 0 {
		return 0, invalid(name, "negative value %d", n)
	}
	return n, nil
}
