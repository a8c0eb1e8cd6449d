package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xumezzan/marketplace-project/internal/domain"
)

func TestListPortfolioOldestFirst(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()

	items, err := r.ListPortfolio(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items)

	for _, p := range []domain.PortfolioItem{
		{ID: "p2", SpecialistID: "s1", Title: "Ванная", CreatedAt: "2024-02-01T00:00:00Z"},
		{ID: "p1", SpecialistID: "s1", Title: "Кухня", Description: "Замена смесителя", ImageURL: "https://example.com/k.jpg", CreatedAt: "2024-01-01T00:00:00Z"},
	} {
		require.NoError(t, inTx(t, r, func(tx *sql.Tx) error { return r.InsertPortfolioItem(ctx, tx, p) }))
	}

	items, err = r.ListPortfolio(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ID)
	assert.Equal(t, "Замена смесителя", items[0].Description)
	assert.Equal(t, "https://example.com/k.jpg", items[0].ImageURL)
	assert.Empty(t, items[1].Description, "NULL columns scan as empty")

	_, err = r.DB.Exec(`DROP TABLE portfolio_items`)
	require.NoError(t, err)
	_, err = r.ListPortfolio(ctx, "s1")
	require.Error(t, err)
}
