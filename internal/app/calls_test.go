package app

import (
	"testing"
	"time"

	"github.com/dkeye/Rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRegistryIndexesParticipants(t *testing.T) {
	r := NewCallRegistry()
	now := time.Now()
	require.NoError(t, r.Add(domain.NewCall("c1", "alice", "bob", nil, now)))
	require.NoError(t, r.Add(domain.NewCall("c2", "carol", "alice", nil, now)))
	assert.ErrorIs(t, r.Add(domain.NewCall("c1", "x", "y", nil, now)), ErrCallExists)

	assert.Len(t, r.OfUser("alice"), 2)
	assert.Len(t, r.OfUser("bob"), 1)
	assert.Empty(t, r.OfUser("dave"))

	c, ok := r.Remove("c1")
	require.True(t, ok)
	assert.Equal(t, domain.UserID("alice"), c.CallerID)
	assert.Empty(t, r.OfUser("bob"))
	assert.Len(t, r.OfUser("alice"), 1)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Remove("c1")
	assert.False(t, ok)
}
