package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireClient(t *testing.T) {
	require.NoError(t, RequireClient("c-1", "c-1", "hire", "deal d-1"))
	require.ErrorIs(t, RequireClient("", "c-1", "hire", "deal d-1"), ErrNoActor)

	err := RequireClient("c-2", "c-1", "confirm", "deal d-1")
	var fe ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "confirm", fe.Action)
	assert.Equal(t, "not allowed to confirm deal d-1", err.Error())
}

func TestRequireSpecialist(t *testing.T) {
	require.NoError(t, RequireSpecialist("s-1", "s-1", "submit an offer for", "task t-1"))
	var fe ForbiddenError
	require.ErrorAs(t, RequireSpecialist("c-1", "s-1", "submit an offer for", "task t-1"), &fe)
	assert.Equal(t, "not allowed to submit an offer for task t-1", fe.Error())
}
