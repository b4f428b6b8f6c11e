// Package lock provides leased per-record mutual exclusion over Redis.
// A worker claims a record for a bounded lease; if the worker crashes the
// lease expires and the record becomes claimable again.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrContended signals the record is already claimed by another worker.
// Callers skip the record; contention is not a failure.
var ErrContended = eris.New("lock: record already claimed")

// releaseScript deletes the key only when the stored token matches, so a
// worker whose lease already expired cannot release someone else's claim.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// refreshScript extends the lease only for the current owner.
const refreshScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`

// Client is the subset of go-redis operations the manager needs.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Manager acquires and releases record leases.
type Manager struct {
	rdb   Client
	lease time.Duration
}

// NewManager creates a lease manager with the given lease duration.
func NewManager(rdb Client, lease time.Duration) *Manager {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &Manager{rdb: rdb, lease: lease}
}

// Lease is a held claim on one record.
type Lease struct {
	m     *Manager
	key   string
	token string
}

// Acquire claims the record, returning ErrContended when another worker
// holds it.
func (m *Manager) Acquire(ctx context.Context, recordID string) (*Lease, error) {
	key := "record-lease:" + recordID
	token := uuid.NewString()

	ok, err := m.rdb.SetNX(ctx, key, token, m.lease).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "lock: acquire %s", recordID)
	}
	if !ok {
		return nil, ErrContended
	}
	return &Lease{m: m, key: key, token: token}, nil
}

// Release frees the claim. A stale token (lease expired and reclaimed) is a
// no-op, logged at debug.
func (l *Lease) Release(ctx context.Context) {
	n, err := l.m.rdb.Eval(ctx, releaseScript, []string{l.key}, l.token).Int64()
	if err != nil {
		zap.L().Warn("lock: release failed", zap.String("key", l.key), zap.Error(err))
		return
	}
	if n == 0 {
		zap.L().Debug("lock: lease already expired at release", zap.String("key", l.key))
	}
}

// Refresh extends the lease for a long-running record. Returns false when
// the lease was lost.
func (l *Lease) Refresh(ctx context.Context) (bool, error) {
	n, err := l.m.rdb.Eval(ctx, refreshScript, []string{l.key}, l.token, l.m.lease.Milliseconds()).Int64()
	if err != nil {
		return false, eris.Wrapf(err, "lock: refresh %s", l.key)
	}
	return n == 1, nil
}
