package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking-core/internal/model"
)

func TestGenerateLayout(t *testing.T) {
	layout := model.GenerateLayout(2, 13)
	require.Len(t, layout, 2)
	require.Len(t, layout[0], 13)

	// Column 7 is the aisle and carries no seat.
	assert.Nil(t, layout[0][6])
	assert.Nil(t, layout[1][6])

	// Numbering skips the aisle: the seat right of the gap continues
	// the sequence.
	assert.Equal(t, "A6", layout[0][5].ID)
	assert.Equal(t, "A7", layout[0][7].ID)
	assert.Equal(t, "A12", layout[0][12].ID)
	assert.Equal(t, "B1", layout[1][0].ID)
	assert.Equal(t, 12, layout[0][12].Number)
}

func TestGenerateLayoutDeterministic(t *testing.T) {
	a := model.GenerateLayout(5, 13)
	b := model.GenerateLayout(5, 13)
	assert.Equal(t, a, b)
}

func TestLayoutSeatIDs(t *testing.T) {
	layout := model.GenerateLayout(3, 13)
	ids := model.LayoutSeatIDs(layout)
	// 13 columns minus the aisle leaves 12 seats per row.
	assert.Len(t, ids, 36)
	assert.Equal(t, "A1", ids[0])
	assert.Equal(t, "C12", ids[35])

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		_, dup := seen[id]
		assert.False(t, dup, "duplicate seat id %s", id)
		seen[id] = struct{}{}
	}
}

func TestRowLabelsBeyondZ(t *testing.T) {
	layout := model.GenerateLayout(28, 13)
	assert.Equal(t, "Z", layout[25][0].Row)
	assert.Equal(t, "AA", layout[26][0].Row)
	assert.Equal(t, "AB", layout[27][0].Row)
	assert.Equal(t, "AA1", layout[26][0].ID)
}
