package browser

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/metrics"
)

// Pool hands out exclusive session leases. Acquire prefers reusing an idle
// remote session and falls back to launching a new one.
type Pool struct {
	directory Directory
	dialer    Dialer
	logger    *zap.Logger

	// pick chooses an index in [0, n); overridable in tests.
	pick func(n int) int
}

// NewPool constructs a Pool over the given directory and dialer.
func NewPool(directory Directory, dialer Dialer, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		directory: directory,
		dialer:    dialer,
		logger:    logger,
		pick:      rand.Intn,
	}
}

// Lease is exclusive ownership of one attached session. Release must run on
// every exit path of the code that acquired it.
type Lease struct {
	info SessionInfo
	conn Conn
	once sync.Once
}

// NewLease constructs a lease from an already-attached connection
// (primarily for testing).
func NewLease(info SessionInfo, conn Conn) *Lease {
	return &Lease{info: info, conn: conn}
}

// SessionID identifies the leased remote session.
func (l *Lease) SessionID() string {
	return l.info.SessionID
}

// Context returns the browser context actions run against.
func (l *Lease) Context() context.Context {
	return l.conn.Context()
}

// Release disconnects from the session, returning it to the pool. The remote
// session is not terminated. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.conn.Close()
	})
}

// Acquire leases a browser session. The boolean result reports whether a new
// session had to be launched. Idle sessions are picked uniformly at random to
// spread load; there is no stickiness. A failed attach to a listed session is
// swallowed and treated as "no session available".
func (p *Pool) Acquire(ctx context.Context) (*Lease, bool, error) {
	if info, conn, ok := p.tryReuse(ctx); ok {
		p.logger.Debug("reusing browser session", zap.String("session_id", info.SessionID))
		metrics.ObserveSessionAcquired(false)
		return &Lease{info: info, conn: conn}, false, nil
	}

	info, err := p.directory.Launch(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("%w: launch new session: %v", ErrResourceExhausted, err)
	}
	conn, err := p.dialer.Dial(ctx, info)
	if err != nil {
		return nil, false, fmt.Errorf("%w: attach to launched session %s: %v", ErrResourceExhausted, info.SessionID, err)
	}
	p.logger.Debug("launched browser session", zap.String("session_id", info.SessionID))
	metrics.ObserveSessionAcquired(true)
	return &Lease{info: info, conn: conn}, true, nil
}

func (p *Pool) tryReuse(ctx context.Context) (SessionInfo, Conn, bool) {
	sessions, err := p.directory.Sessions(ctx)
	if err != nil {
		p.logger.Warn("session directory query failed", zap.Error(err))
		return SessionInfo{}, nil, false
	}
	idle := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		if s.Idle() {
			idle = append(idle, s)
		}
	}
	if len(idle) == 0 {
		return SessionInfo{}, nil, false
	}

	candidate := idle[p.pick(len(idle))]
	conn, err := p.dialer.Dial(ctx, candidate)
	if err != nil {
		// Stale or contended session; fall through to launching a fresh one.
		p.logger.Warn("failed to attach to session",
			zap.String("session_id", candidate.SessionID),
			zap.Error(err),
		)
		return SessionInfo{}, nil, false
	}
	return candidate, conn, true
}
