package repo_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xumezzan/marketplace-project/internal/db"
	"github.com/xumezzan/marketplace-project/internal/domain"
	"github.com/xumezzan/marketplace-project/internal/migrate"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func openRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	_, err = conn.Exec(`INSERT INTO specialists(id,name,profession,created_at) VALUES ('s1','Алексей','Сантехник','2024-01-01T00:00:00Z')`)
	require.NoError(t, err)
	return repo.Repo{DB: conn}
}

func inTx(t *testing.T, r repo.Repo, fn func(tx *sql.Tx) error) error {
	t.Helper()
	tx, err := r.DB.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func TestUpdateDealStateComparesStatus(t *testing.T) {
	r := openRepo(t)
	ctx := context.Background()
	d := domain.Deal{ID: "d1", ClientID: "c1", SpecialistID: "s1", Amount: "100.00", Status: "escrow_pending",
		CreatedAt: "2024-01-01T00:00:00Z", UpdatedAt: "2024-01-01T00:00:00Z"}
	require.NoError(t, inTx(t, r, func(tx *sql.Tx) error { return r.InsertDeal(ctx, tx, d) }))

	failed := d
	failed.Status = "reservation_failed"
	require.NoError(t, inTx(t, r, func(tx *sql.Tx) error { return r.UpdateDealState(ctx, tx, failed, "escrow_pending") }))

	wip := d
	wip.Status = "work_in_progress"
	err := inTx(t, r, func(tx *sql.Tx) error { return r.UpdateDealState(ctx, tx, wip, "escrow_pending") })
	require.ErrorIs(t, err, repo.ErrConflict)
	got, err := r.GetDeal(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "reservation_failed", got.Status)

	err = inTx(t, r, func(tx *sql.Tx) error { return r.DeleteDeal(ctx, tx, "d1", "escrow_pending") })
	require.ErrorIs(t, err, repo.ErrConflict)

	missing := d
	missing.ID = "nope"
	err = inTx(t, r, func(tx *sql.Tx) error { return r.UpdateDealState(ctx, tx, missing, "escrow_pending") })
	require.ErrorIs(t, err, repo.ErrNotFound)

	require.NoError(t, inTx(t, r, func(tx *sql.Tx) error { return r.DeleteDeal(ctx, tx, "d1", "reservation_failed") }))
}
