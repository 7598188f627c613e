package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRegistry(rdb, time.Hour), mr
}

func mustRegister(t *testing.T, reg *Registry, userID string, h Handle) Handle {
	t.Helper()
	prev, err := reg.RegisterConnection(context.Background(), userID, h)
	require.NoError(t, err)
	return prev
}

func TestParseHandle(t *testing.T) {
	h, err := ParseHandle("node-1/abc")
	require.NoError(t, err)
	assert.Equal(t, Handle{InstanceID: "node-1", ConnID: "abc"}, h)
	assert.Equal(t, "node-1/abc", h.String())

	_, err = ParseHandle("no-slash")
	assert.Error(t, err)
	_, err = ParseHandle("/abc")
	assert.Error(t, err)
}

func TestRegisterAndLookup(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	_, ok, err := reg.LookupConnection(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	h := Handle{InstanceID: "node-1", ConnID: "c1"}
	mustRegister(t, reg, "u1", h)

	got, ok, err := reg.LookupConnection(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, h, got)

	online, err := reg.IsOnline(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, online)

	count, err := reg.OnlineCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestStaleUnregisterKeepsNewerConnection(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first := Handle{InstanceID: "node-1", ConnID: "old"}
	second := Handle{InstanceID: "node-2", ConnID: "new"}
	assert.True(t, mustRegister(t, reg, "u1", first).IsZero())
	assert.Equal(t, first, mustRegister(t, reg, "u1", second), "the replaced handle is returned")
	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-1"))

	removed, err := reg.UnregisterConnection(ctx, "u1", first)
	require.NoError(t, err)
	assert.False(t, removed)

	got, ok, err := reg.LookupConnection(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, got)

	viewing, err := reg.IsUserActivelyViewing(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.True(t, viewing, "stale disconnect must not clear the active conversation")

	removed, err = reg.UnregisterConnection(ctx, "u1", second)
	require.NoError(t, err)
	assert.True(t, removed)

	_, ok, err = reg.LookupConnection(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.False(t, viewing)
}

func TestActiveConversation(t *testing.T) {
	reg, mr := newTestRegistry(t)
	ctx := context.Background()

	viewing, err := reg.IsUserActivelyViewing(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.False(t, viewing)

	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-1"))
	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.False(t, viewing, "a marker without a live connection does not count")

	mustRegister(t, reg, "u1", Handle{InstanceID: "node-1", ConnID: "c1"})
	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-2"))

	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-1")
	require.NoError(t, err)
	assert.False(t, viewing)
	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-2")
	require.NoError(t, err)
	assert.True(t, viewing)

	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "")
	require.NoError(t, err)
	assert.False(t, viewing)

	mr.FastForward(2 * time.Hour)
	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-2")
	require.NoError(t, err)
	assert.False(t, viewing, "active conversation expires")

	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-3"))
	require.NoError(t, reg.ClearActiveConversation(ctx, "u1"))
	active, err := reg.ActiveConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestOnlineUsersAndPurgeInstance(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	mustRegister(t, reg, "u1", Handle{InstanceID: "node-1", ConnID: "a"})
	mustRegister(t, reg, "u2", Handle{InstanceID: "node-2", ConnID: "b"})
	mustRegister(t, reg, "u3", Handle{InstanceID: "node-1", ConnID: "c"})

	online, err := reg.OnlineUsers(ctx, []string{"u1", "u2", "u4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"u1": true, "u2": true, "u4": false}, online)

	purged, err := reg.PurgeInstance(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	count, err := reg.OnlineCount(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUnconditionalUnregister(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	removed, err := reg.UnregisterConnection(ctx, "ghost", Handle{})
	require.NoError(t, err)
	assert.False(t, removed, "missing keys are not errors")

	mustRegister(t, reg, "u1", Handle{InstanceID: "node-1", ConnID: "a"})
	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-1"))
	removed, err = reg.UnregisterConnection(ctx, "u1", Handle{})
	require.NoError(t, err)
	assert.True(t, removed)

	active, err := reg.ActiveConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestReplacedConnectionDropsViewingMarker(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	first := Handle{InstanceID: "node-1", ConnID: "h1"}
	second := Handle{InstanceID: "node-1", ConnID: "h2"}
	mustRegister(t, reg, "u1", first)
	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-x"))
	mustRegister(t, reg, "u1", second)

	removed, err := reg.UnregisterConnection(ctx, "u1", first)
	require.NoError(t, err)
	assert.False(t, removed)

	viewing, err := reg.IsUserActivelyViewing(ctx, "u1", "conv-x")
	require.NoError(t, err)
	assert.False(t, viewing, "the new socket never joined conv-x")

	require.NoError(t, reg.SetActiveConversation(ctx, "u1", "conv-x"))
	viewing, err = reg.IsUserActivelyViewing(ctx, "u1", "conv-x")
	require.NoError(t, err)
	assert.True(t, viewing)
}

func TestReRegisterSameHandleReportsNoReplacement(t *testing.T) {
	reg, _ := newTestRegistry(t)
	h := Handle{InstanceID: "node-1", ConnID: "a"}

	mustRegister(t, reg, "u1", h)
	assert.True(t, mustRegister(t, reg, "u1", h).IsZero())

	_, err := reg.RegisterConnection(context.Background(), "", h)
	assert.Error(t, err)
}
