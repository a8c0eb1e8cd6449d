package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xumezzan/marketplace-project/internal/db"
	"github.com/xumezzan/marketplace-project/internal/events"
	"github.com/xumezzan/marketplace-project/internal/migrate"
	"github.com/xumezzan/marketplace-project/internal/repo"
)

func TestAppendCommitsWithTransaction(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := events.Writer{DB: conn, Now: func() time.Time { return at }}
	ctx := context.Background()

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.DealOpened, events.EntityDeal, "d1", "", events.EventPayload{"amount": "1500.00"}))
	require.NoError(t, tx.Rollback())

	tx, err = conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, w.Append(ctx, tx, events.DealOpened, events.EntityDeal, "d2", "client-1", nil))
	require.NoError(t, tx.Commit())

	items, err := repo.Repo{DB: conn}.ListEvents(ctx, repo.EventFilters{EntityKind: events.EntityDeal})
	require.NoError(t, err)
	require.Len(t, items, 1, "rolled back event must not be stored")
	assert.Equal(t, "d2", items[0].EntityID)
	assert.Equal(t, "client-1", items[0].ActorID)
	assert.Equal(t, "{}", items[0].Payload)
	assert.Equal(t, "2026-03-01T10:00:00Z", items[0].TS)
}

func TestAppendDefaultsToSystemActor(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, migrate.Migrate(conn))
	ctx := context.Background()

	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, events.Writer{DB: conn}.Append(ctx, tx, events.DealTransitioned, events.EntityDeal, "d1", "", events.EventPayload{"to": "work_in_progress"}))
	require.NoError(t, tx.Commit())

	items, err := repo.Repo{DB: conn}.ListEvents(ctx, repo.EventFilters{Type: events.DealTransitioned})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, events.SystemActor, items[0].ActorID)
	assert.JSONEq(t, `{"to":"work_in_progress"}`, items[0].Payload)
}
