package position

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/models"
	"gorm.io/gorm"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gormDB, err := db.OpenTestDB()
	require.NoError(t, err)
	return gormDB
}

func seedCards(t *testing.T, gormDB *gorm.DB, listID string, positions ...int) {
	t.Helper()
	for i, p := range positions {
		c := models.Card{
			ID:       fmt.Sprintf("%s-c%d", listID, i),
			BoardID:  "b1",
			ListID:   listID,
			Title:    fmt.Sprintf("card %d", i),
			Position: p,
		}
		require.NoError(t, gormDB.Create(&c).Error)
	}
}

func TestAppend(t *testing.T) {
	gormDB := testDB(t)
	n, err := Append(gormDB, Cards, "l1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	seedCards(t, gormDB, "l1", 0, 1, 2)
	seedCards(t, gormDB, "l2", 0)

	n, err = Append(gormDB, Cards, "l1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// A gap below the highest position must not hand out a taken slot.
	seedCards(t, gormDB, "l3", 1, 2)
	n, err = Append(gormDB, Cards, "l3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestOthers(t *testing.T) {
	gormDB := testDB(t)
	seedCards(t, gormDB, "l1", 0, 3, 5)

	got, err := Others(gormDB, Cards, "l1", "l1-c1")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5}, got)

	got, err = Others(gormDB, Cards, "l1", "")
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 5}, got)
}

func TestRenumber(t *testing.T) {
	tests := []struct {
		name   string
		r      Range
		delta  int
		except string
		want   []int
	}{
		{"open up", From(1), +1, "", []int{0, 2, 3, 4}},
		{"close down", From(2), -1, "", []int{0, 1, 1, 2}},
		{"bounded", Range{From: 1, To: 3}, +1, "", []int{0, 2, 3, 3}},
		{"except", From(0), +1, "l1-c0", []int{0, 2, 3, 4}},
		{"empty range", Range{From: 2, To: 2}, +1, "", []int{0, 1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB := testDB(t)
			seedCards(t, gormDB, "l1", 0, 1, 2, 3)
			seedCards(t, gormDB, "l2", 0, 1)

			require.NoError(t, Renumber(gormDB, Cards, "l1", tt.r, tt.delta, tt.except))

			var got []int
			require.NoError(t, gormDB.Table("cards").Where("list_id = ?", "l1").
				Order("id").Pluck("position", &got).Error)
			assert.Equal(t, tt.want, got)

			other, err := Positions(gormDB, Cards, "l2")
			require.NoError(t, err)
			assert.Equal(t, []int{0, 1}, other, "other container touched")
		})
	}
}

func TestOrdering(t *testing.T) {
	gormDB := testDB(t)
	seedCards(t, gormDB, "l1", 2, 0, 1)

	var cards []models.Card
	require.NoError(t, Ordering(gormDB, Cards, "l1").Find(&cards).Error)
	require.Len(t, cards, 3)
	assert.Equal(t, "l1-c1", cards[0].ID)
	assert.Equal(t, "l1-c2", cards[1].ID)
	assert.Equal(t, "l1-c0", cards[2].ID)
}

func TestCompact(t *testing.T) {
	gormDB := testDB(t)
	seedCards(t, gormDB, "l1", 0, 3, 7, 8)

	changed, err := Compact(gormDB, Cards, "l1")
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	got, err := Positions(gormDB, Cards, "l1")
	require.NoError(t, err)
	assert.True(t, Dense(got), "positions %v not dense", got)

	var cards []models.Card
	require.NoError(t, Ordering(gormDB, Cards, "l1").Find(&cards).Error)
	ids := []string{cards[0].ID, cards[1].ID, cards[2].ID, cards[3].ID}
	assert.Equal(t, []string{"l1-c0", "l1-c1", "l1-c2", "l1-c3"}, ids)

	changed, err = Compact(gormDB, Cards, "l1")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestParents(t *testing.T) {
	gormDB := testDB(t)
	seedCards(t, gormDB, "l1", 0, 1)
	seedCards(t, gormDB, "l2", 0)

	ids, err := Parents(gormDB, Cards)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"l1", "l2"}, ids)
}
