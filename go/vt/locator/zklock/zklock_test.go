package zklock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samuel/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is a minimal in-memory stand-in for *zk.Conn, keyed by znode
// path, sufficient for unit-testing Checker/Registry without a live
// ensemble.
type fakeConn struct {
	nodes map[string][]byte
}

func newFakeConn() *fakeConn { return &fakeConn{nodes: make(map[string][]byte)} }

func (f *fakeConn) Get(path string) ([]byte, *zk.Stat, error) {
	data, ok := f.nodes[path]
	if !ok {
		return nil, nil, zk.ErrNoNode
	}
	return data, &zk.Stat{}, nil
}

func (f *fakeConn) put(path, value string) {
	f.nodes[path] = []byte(value)
}

// newFixtureSession mints a fresh-looking session token for test fixtures,
// the same way a real server would at startup before publishing its lock
// znode.
func newFixtureSession() string {
	return uuid.NewString()
}

func TestChecker_HeldWhenSessionMatches(t *testing.T) {
	conn := newFakeConn()
	session := newFixtureSession()
	conn.put(ServerLockPath("host:1"), session)

	c := NewChecker(conn)
	held, err := c.IsLockHeld(context.Background(), "host:1", session)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestChecker_LostWhenSessionSuperseded(t *testing.T) {
	conn := newFakeConn()
	original := newFixtureSession()
	replacement := newFixtureSession()
	conn.put(ServerLockPath("host:1"), replacement)

	c := NewChecker(conn)
	held, err := c.IsLockHeld(context.Background(), "host:1", original)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestChecker_MissingNodeIsNotHeld(t *testing.T) {
	conn := newFakeConn()
	c := NewChecker(conn)
	held, err := c.IsLockHeld(context.Background(), "host:unknown", newFixtureSession())
	require.NoError(t, err)
	assert.False(t, held)
}

func TestChecker_MemoizesUntilInvalidated(t *testing.T) {
	conn := newFakeConn()
	session := newFixtureSession()
	conn.put(ServerLockPath("host:1"), session)
	c := NewChecker(conn)

	held, err := c.IsLockHeld(context.Background(), "host:1", session)
	require.NoError(t, err)
	assert.True(t, held)

	// the node changes underneath, but the memoized verdict still answers
	// until InvalidateCache is called.
	conn.put(ServerLockPath("host:1"), newFixtureSession())
	held, err = c.IsLockHeld(context.Background(), "host:1", session)
	require.NoError(t, err)
	assert.True(t, held, "memoized verdict should not re-query until invalidated")

	c.InvalidateCache("host:1")
	held, err = c.IsLockHeld(context.Background(), "host:1", session)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestRegistry_Get(t *testing.T) {
	conn := newFakeConn()
	conn.put(RootTabletPathForTest, "VT_ROOT|root-host:1|sess-1")

	r := NewRegistry(conn)
	data, err := r.Get(context.Background(), RootTabletPathForTest)
	require.NoError(t, err)
	assert.Equal(t, "VT_ROOT|root-host:1|sess-1", string(data))
}

func TestRegistry_MissingPathErrors(t *testing.T) {
	conn := newFakeConn()
	r := NewRegistry(conn)
	_, err := r.Get(context.Background(), "/vt/nope")
	assert.Error(t, err)
}

// RootTabletPathForTest avoids importing the locator package just to reuse
// its RootTabletPath constant in this package's tests.
const RootTabletPathForTest = "/vt/root_tablet"
