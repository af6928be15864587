// Package lock provides the optional per-tenant workflow lock. With Redis configured it is a
// redislock lease; without it every call succeeds and PostgreSQL row locks are the only guard.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrBusy is returned when another holder owns the key.
var ErrBusy = errors.New("operation in progress")

// DefaultTTL bounds how long a crashed holder can block a key.
const DefaultTTL = 30 * time.Second

// A held key is retried every retryBackoff, up to retryLimit times, before ErrBusy.
const (
	retryBackoff = 100 * time.Millisecond
	retryLimit   = 20
)

// obtainOptions returns fresh options per call; a limited retry strategy counts its attempts.
func obtainOptions() *redislock.Options {
	return &redislock.Options{RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryBackoff), retryLimit)}
}

// Locker obtains a named lease. The returned release func is always safe to call.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// Connect pings Redis at addr and returns a redislock-backed Locker. An empty addr returns Noop.
func Connect(ctx context.Context, addr string, log logrus.FieldLogger) (Locker, *redis.Client, error) {
	if addr == "" {
		return Noop{}, nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return NewRedis(rdb, log), rdb, nil
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewRedis wraps an existing client.
func NewRedis(rdb *redis.Client, log logrus.FieldLogger) Locker {
	return &redisLocker{client: redislock.New(rdb), ttl: DefaultTTL, log: log}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, obtainOptions())
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	if err != nil {
		return func() {}, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return func() {
		// Background context: the request context may already be cancelled.
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.WithField("key", key).Warn("release lock: " + err.Error())
		}
	}, nil
}

// Noop never blocks.
type Noop struct{}

func (Noop) Obtain(context.Context, string) (func(), error) {
	return func() {}, nil
}

// TenantKey scopes a lock to one company and workflow, e.g. "cash-session:ACME:2024-03-01".
func TenantKey(workflow, companyCode string, parts ...string) string {
	key := workflow + ":" + companyCode
	for _, p := range parts {
		key += ":" + p
	}
	return key
}
