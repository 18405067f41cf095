package pack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

func TestDisplaySinglePieceItems(t *testing.T) {
	assert.Equal(t, "0 pcs", Display(0, 1))
	assert.Equal(t, "1 pc", Display(1, 1))
	assert.Equal(t, "2 pcs", Display(2, 1))
	assert.Equal(t, "1 pc", Display(1, 0), "zero pieces-per-box behaves as 1")
}

func TestDisplayPackItems(t *testing.T) {
	assert.Equal(t, "2 units + 3 pcs", Display(27, 12))
	assert.Equal(t, "1 unit + 0 pcs", Display(12, 12))
	assert.Equal(t, "0 units + 1 pc", Display(1, 12))
}

func TestSplitRoundTrip(t *testing.T) {
	for ppb := 1; ppb <= 24; ppb++ {
		for q := 0; q <= 100; q++ {
			b := Split(q, ppb)
			require.Equal(t, q/ppb, b.Packs)
			require.Equal(t, q%ppb, b.Pieces)
			require.Equal(t, q, b.Total(ppb))
		}
	}
}

func TestSplitClampsNegativeQuantity(t *testing.T) {
	assert.Equal(t, Breakdown{}, Split(-4, 6))
}

func TestResolveChoice(t *testing.T) {
	n, err := Resolve(ChoicePack, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = Resolve(ChoicePiece, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = Resolve(ChoicePack, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = Resolve("half", 6)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestOptions(t *testing.T) {
	assert.Len(t, Options(1), 1)
	opts := Options(10)
	require.Len(t, opts, 2)
	assert.Equal(t, ChoicePack, opts[0].Choice)
	assert.Equal(t, 10, opts[0].Pieces)
	assert.Equal(t, "1 unit (10 pcs)", opts[0].Label)
}

func TestTotalPiecesAndLabelCount(t *testing.T) {
	assert.Equal(t, 27, TotalPieces(2, 12, 3))
	assert.Equal(t, 5, TotalPieces(0, 0, 5))

	assert.Equal(t, 3, LabelCount(27, 12))
	assert.Equal(t, 2, LabelCount(24, 12))
	assert.Equal(t, 7, LabelCount(7, 1))
	assert.Equal(t, 0, LabelCount(0, 12))
}
