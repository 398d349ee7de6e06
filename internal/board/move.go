package board

import (
	"fmt"
	"strings"
)

// Move is a from/to/promotion triple packed into 16 bits:
//
//	bits 0-5:   from square (0-63, a1=0 ... h8=63)
//	bits 6-11:  to square (0-63)
//	bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
type Move uint16

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	movePromoShift = 12
	moveToShift    = 6
)

// Promotion piece types
const (
	PromoNone   = 0
	PromoQueen  = 1
	PromoRook   = 2
	PromoBishop = 3
	PromoKnight = 4
)

var promoLetters = [...]byte{'q', 'r', 'b', 'n'}

// EncodeMove creates a Move from square indices and optional promotion.
// Out-of-range squares or promotions yield the zero Move.
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 || promo > PromoKnight {
		return 0
	}
	return Move(uint16(from) | uint16(to)<<moveToShift | uint16(promo)<<movePromoShift)
}

// FromSquare returns the source square index (0-63).
func (m Move) FromSquare() int {
	return int(m & moveFromMask)
}

// ToSquare returns the destination square index (0-63).
func (m Move) ToSquare() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N).
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// IsNull reports whether the move has identical origin and destination,
// which is how "0000" and the zero Move look.
func (m Move) IsNull() bool {
	return m.FromSquare() == m.ToSquare()
}

// ToUCI converts a Move to UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) ToUCI() string {
	from := m.FromSquare()
	to := m.ToSquare()

	b := []byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	}
	if p := m.Promotion(); p > PromoNone && p <= PromoKnight {
		b = append(b, promoLetters[p-1])
	}
	return string(b)
}

// MoveFromUCI parses a UCI move string into a Move.
// Examples: "e2e4", "e7e8q", "a1h8"
func MoveFromUCI(uci string) (Move, error) {
	if len(uci) != 4 && len(uci) != 5 {
		return 0, fmt.Errorf("UCI move must be 4 or 5 characters: %q", uci)
	}

	from, err := ParseSquare(uci[0:2])
	if err != nil {
		return 0, fmt.Errorf("invalid from square in UCI %q: %w", uci, err)
	}
	to, err := ParseSquare(uci[2:4])
	if err != nil {
		return 0, fmt.Errorf("invalid to square in UCI %q: %w", uci, err)
	}

	var promo byte = PromoNone
	if len(uci) == 5 {
		switch uci[4] {
		case 'q', 'Q':
			promo = PromoQueen
		case 'r', 'R':
			promo = PromoRook
		case 'b', 'B':
			promo = PromoBishop
		case 'n', 'N':
			promo = PromoKnight
		default:
			return 0, fmt.Errorf("invalid promotion piece: %c", uci[4])
		}
	}

	return EncodeMove(from, to, promo), nil
}

// NormalizeUCI parses an engine-reported move and re-renders it in canonical
// lowercase coordinate notation.
func NormalizeUCI(s string) (string, error) {
	m, err := MoveFromUCI(strings.TrimSpace(s))
	if err != nil {
		return "", err
	}
	if m.IsNull() {
		return "", fmt.Errorf("null move %q", s)
	}
	return m.ToUCI(), nil
}

// ParseSquare converts algebraic coordinates ("e4") to a square index.
func ParseSquare(s string) (int, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("square must be 2 characters: %q", s)
	}
	file := int(s[0]) - 'a'
	rank := int(s[1]) - '1'
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, fmt.Errorf("square out of range: %q", s)
	}
	return rank*8 + file, nil
}
