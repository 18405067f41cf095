// Package pack converts between packs (boxes) and pieces for items sold in
// bulk units.
package pack

import (
	"fmt"

	"stockflow/backend/internal/domain"
)

const (
	ChoicePack  = "pack"
	ChoicePiece = "piece"
)

type Breakdown struct {
	Packs  int `json:"packs"`
	Pieces int `json:"pieces"`
}

// Total converts the breakdown back to pieces.
func (b Breakdown) Total(piecesPerBox int) int {
	return b.Packs*Normalize(piecesPerBox) + b.Pieces
}

// Normalize treats a missing or zero pieces-per-box as a single piece.
func Normalize(piecesPerBox int) int {
	if piecesPerBox < 1 {
		return 1
	}
	return piecesPerBox
}

func IsPack(piecesPerBox int) bool {
	return Normalize(piecesPerBox) > 1
}

func Split(quantity, piecesPerBox int) Breakdown {
	if quantity < 0 {
		quantity = 0
	}
	ppb := Normalize(piecesPerBox)
	return Breakdown{Packs: quantity / ppb, Pieces: quantity % ppb}
}

// Display renders stock as "2 units + 3 pcs" for pack items and "5 pcs" otherwise.
func Display(quantity, piecesPerBox int) string {
	if !IsPack(piecesPerBox) {
		return plural(quantity, "pc")
	}
	b := Split(quantity, piecesPerBox)
	return plural(b.Packs, "unit") + " + " + plural(b.Pieces, "pc")
}

// Options lists the add-to-cart choices offered for an item.
func Options(piecesPerBox int) []domain.PackOption {
	ppb := Normalize(piecesPerBox)
	if ppb == 1 {
		return []domain.PackOption{{Choice: ChoicePiece, Pieces: 1, Label: "1 pc"}}
	}
	return []domain.PackOption{
		{Choice: ChoicePack, Pieces: ppb, Label: fmt.Sprintf("1 unit (%s)", plural(ppb, "pc"))},
		{Choice: ChoicePiece, Pieces: 1, Label: "1 pc"},
	}
}

// Resolve returns how many pieces a pack/piece choice adds to the cart.
func Resolve(choice string, piecesPerBox int) (int, error) {
	switch choice {
	case ChoicePack:
		return Normalize(piecesPerBox), nil
	case ChoicePiece, "":
		return 1, nil
	default:
		return 0, fmt.Errorf("unknown pack choice %q: %w", choice, domain.ErrInvalidQuantity)
	}
}

// TotalPieces is the stock recorded when registering boxes plus loose pieces.
func TotalPieces(boxes, piecesPerBox, loose int) int {
	if boxes < 0 {
		boxes = 0
	}
	if loose < 0 {
		loose = 0
	}
	return boxes*Normalize(piecesPerBox) + loose
}

// LabelCount is one label per pack for pack items, one per piece otherwise.
func LabelCount(quantity, piecesPerBox int) int {
	if quantity <= 0 {
		return 0
	}
	ppb := Normalize(piecesPerBox)
	return (quantity + ppb - 1) / ppb
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
