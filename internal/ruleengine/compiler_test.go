package ruleengine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileBXGY(t *testing.T) {
	tests := []struct {
		name    string
		params  BXGYParams
		want    Condition
		wantErr error
	}{
		{
			name:   "Should default an empty mode to product",
			params: BXGYParams{BuyQty: 2, BuyVariants: []int64{5, 6}},
			want:   ProductCondition{BuyQty: 2, BuyVariants: variants(5, 6)},
		},
		{
			name:   "Should default a missing buyQty to 1",
			params: BXGYParams{Mode: ModeAll},
			want:   StorewideCondition{BuyQty: 1},
		},
		{
			name:   "Should compile collection mode",
			params: BXGYParams{Mode: ModeCollection, BuyQty: 3, Handles: []string{"summer"}},
			want:   CollectionCondition{BuyQty: 3, Handles: []string{"summer"}},
		},
		{
			name:   "Should compile spend mode",
			params: BXGYParams{Mode: ModeSpendAnyCollection, SpendAmount: decimal.NewFromInt(75), Handles: []string{"sale"}},
			want:   CollectionSpendCondition{SpendAmount: decimal.NewFromInt(75), Handles: []string{"sale"}},
		},
		{
			name:    "Should reject an unknown mode",
			params:  BXGYParams{Mode: "cart"},
			wantErr: ErrUnknownMode,
		},
		{
			name:    "Should reject a negative buyQty",
			params:  BXGYParams{BuyQty: -1},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "Should reject a negative spend amount",
			params:  BXGYParams{Mode: ModeSpendAnyCollection, SpendAmount: decimal.NewFromInt(-5)},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "Should reject a spend goal without spendAmount",
			params:  BXGYParams{Mode: ModeSpendAnyCollection, Handles: []string{"sale"}},
			wantErr: ErrInvalidCondition,
		},
		{
			name:    "Should reject a zero spend amount",
			params:  BXGYParams{Mode: ModeSpendAnyCollection, SpendAmount: decimal.Zero, Handles: []string{"sale"}},
			wantErr: ErrInvalidCondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CompileBXGY(tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileTiered(t *testing.T) {
	t.Run("Should default the track to cart", func(t *testing.T) {
		got, err := CompileTiered("", decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.Equal(t, TrackCart, got.(TieredCondition).Track)
	})

	t.Run("Should accept the quantity track", func(t *testing.T) {
		got, err := CompileTiered("quantity", decimal.NewFromInt(3))
		require.NoError(t, err)
		assert.Equal(t, TrackQuantity, got.(TieredCondition).Track)
	})

	t.Run("Should reject an unknown track", func(t *testing.T) {
		_, err := CompileTiered("weight", decimal.NewFromInt(3))
		assert.ErrorIs(t, err, ErrUnknownMode)
	})

	t.Run("Should reject a negative target", func(t *testing.T) {
		_, err := CompileTiered("cart", decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrInvalidCondition)
	})
}
