package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeCursor(t *testing.T) {
	c := composeCursor("2026-01-02T03:04:05.123Z", "task-1")
	assert.NotContains(t, c, "|")

	ts, id, err := parseCompositeCursor(c)
	require.NoError(t, err)
	assert.Equal(t, "2026-01-02T03:04:05.123Z", ts)
	assert.Equal(t, "task-1", id)

	ts, id, err = parseCompositeCursor("")
	require.NoError(t, err)
	assert.Empty(t, ts)
	assert.Empty(t, id)

	for _, bad := range []string{"not base64!", composeCursor("x", "") + "AA", "bm9waXBl"} {
		_, _, err := parseCompositeCursor(bad)
		assert.ErrorIs(t, err, errBadCursor, bad)
	}
	assert.Empty(t, composeCursor("", "id"))
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, defaultPageSize, normalizeLimit(0))
	assert.Equal(t, defaultPageSize, normalizeLimit(-3))
	assert.Equal(t, 7, normalizeLimit(7))
	assert.Equal(t, maxPageSize, normalizeLimit(1000))
}
