package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestClient(id, userID string) *Client {
	return newClient(nil, id, userID, "user-"+userID, 16)
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("conn-1", "u1")

	r.Register(c)
	r.Register(c)

	require.True(t, r.IsOnline("u1"))
	require.Len(t, r.ConnectionsOf("u1"), 1)
}

func TestRegistryMultipleConnectionsPerUser(t *testing.T) {
	r := NewRegistry()
	c1 := newTestClient("conn-1", "u1")
	c2 := newTestClient("conn-2", "u1")

	r.Register(c1)
	r.Register(c2)

	require.Len(t, r.ConnectionsOf("u1"), 2)
	require.Equal(t, 1, r.OnlineUserCount())
}

func TestRegistryUnregisterRemovesEntryWhenLastConnectionGoes(t *testing.T) {
	r := NewRegistry()
	c1 := newTestClient("conn-1", "u1")
	c2 := newTestClient("conn-2", "u1")
	r.Register(c1)
	r.Register(c2)

	r.Unregister(c1)
	require.True(t, r.IsOnline("u1"))
	require.Len(t, r.ConnectionsOf("u1"), 1)

	r.Unregister(c2)
	require.False(t, r.IsOnline("u1"))
	require.Empty(t, r.ConnectionsOf("u1"))
	require.Equal(t, 0, r.OnlineUserCount())
}

func TestRegistryUnknownUserIsOffline(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.IsOnline("nobody"))
	require.Empty(t, r.ConnectionsOf("nobody"))
}

func TestRegistryUnregisterUnknownClientIsNoop(t *testing.T) {
	r := NewRegistry()
	c := newTestClient("conn-1", "u1")
	r.Unregister(c)
	require.False(t, r.IsOnline("u1"))
}
