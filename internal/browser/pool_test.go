package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDirectory struct {
	sessions    []SessionInfo
	sessionsErr error
	launched    SessionInfo
	launchErr   error
	launchCalls int
}

func (d *fakeDirectory) Sessions(context.Context) ([]SessionInfo, error) {
	return d.sessions, d.sessionsErr
}

func (d *fakeDirectory) Launch(context.Context) (SessionInfo, error) {
	d.launchCalls++
	return d.launched, d.launchErr
}

type fakeConn struct {
	closed int
}

func (c *fakeConn) Context() context.Context { return context.Background() }
func (c *fakeConn) Close()                   { c.closed++ }

type fakeDialer struct {
	failFor map[string]error
	dialed  []string
	conns   []*fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, info SessionInfo) (Conn, error) {
	d.dialed = append(d.dialed, info.SessionID)
	if err, ok := d.failFor[info.SessionID]; ok {
		return nil, err
	}
	conn := &fakeConn{}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func TestAcquireReusesIdleSession(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: []SessionInfo{
			{SessionID: "busy", ConnectionID: "conn-1"},
			{SessionID: "idle-1"},
		},
	}
	dialer := &fakeDialer{}
	pool := NewPool(dir, dialer, zap.NewNop())

	lease, launched, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.False(t, launched)
	require.Equal(t, "idle-1", lease.SessionID())
	require.Zero(t, dir.launchCalls)

	lease.Release()
	require.Equal(t, 1, dialer.conns[0].closed)
}

func TestAcquireSkipsBusySessions(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: []SessionInfo{
			{SessionID: "busy-1", ConnectionID: "c1"},
			{SessionID: "busy-2", ConnectionID: "c2"},
		},
		launched: SessionInfo{SessionID: "fresh"},
	}
	dialer := &fakeDialer{}
	pool := NewPool(dir, dialer, zap.NewNop())

	lease, launched, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, launched)
	require.Equal(t, "fresh", lease.SessionID())
	require.Equal(t, 1, dir.launchCalls)
}

func TestAcquireFallsThroughOnStaleSession(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: []SessionInfo{{SessionID: "stale"}},
		launched: SessionInfo{SessionID: "fresh"},
	}
	dialer := &fakeDialer{
		failFor: map[string]error{"stale": errors.New("websocket refused")},
	}
	pool := NewPool(dir, dialer, zap.NewNop())

	lease, launched, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, launched)
	require.Equal(t, "fresh", lease.SessionID())
	require.Equal(t, []string{"stale", "fresh"}, dialer.dialed)
}

func TestAcquireLaunchFailureIsResourceExhausted(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		launchErr: errors.New("concurrency limit reached"),
	}
	pool := NewPool(dir, &fakeDialer{}, zap.NewNop())

	_, _, err := pool.Acquire(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, ErrResourceExhausted)
}

func TestAcquireDirectoryErrorFallsBackToLaunch(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessionsErr: errors.New("directory unavailable"),
		launched:    SessionInfo{SessionID: "fresh"},
	}
	dialer := &fakeDialer{}
	pool := NewPool(dir, dialer, zap.NewNop())

	lease, launched, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, launched)
	require.Equal(t, "fresh", lease.SessionID())
}

func TestAcquirePicksUniformlyAcrossIdle(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{
		sessions: []SessionInfo{
			{SessionID: "idle-0"},
			{SessionID: "idle-1"},
			{SessionID: "idle-2"},
		},
	}
	dialer := &fakeDialer{}
	pool := NewPool(dir, dialer, zap.NewNop())
	pool.pick = func(n int) int {
		require.Equal(t, 3, n)
		return 2
	}

	lease, _, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, "idle-2", lease.SessionID())
}

func TestLeaseReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	lease := &Lease{info: SessionInfo{SessionID: "s"}, conn: conn}
	lease.Release()
	lease.Release()
	require.Equal(t, 1, conn.closed)
}
