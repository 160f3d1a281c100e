package maintenance

import (
	"context"
	"time"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// RunWindow is how long a holder may work under a lock of ttl. The rest of
// the TTL is kept for writing results back and releasing the key.
func RunWindow(ttl time.Duration) time.Duration {
	return ttl - ttl/5
}

type lockExpiryKey struct{}

// WithLock runs fn while holding key. When another holder has the lock fn
// is not run and acquired is false; that is not an error.
//
// fn gets a context that ends after RunWindow(ttl), so a slow run gives up
// before the key can expire under it. Release is attempted only while the
// key is still ours; a run that outlived the TTL leaves the key alone since
// another holder may own it by then. Release failures are only logged, the
// TTL frees the key anyway.
func WithLock(ctx context.Context, locker interfaces.Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) (acquired bool, err error) {
	logger := logging.From(ctx)

	start := time.Now()
	ok, err := locker.TryAcquire(ctx, key, ttl)
	if err != nil {
		return false, goerr.Wrap(err, "failed to acquire maintenance lock", goerr.V("lock_key", key))
	}
	if !ok {
		logger.Debug("maintenance lock held elsewhere, skipping", "lock_key", key)
		return false, nil
	}
	expiresAt := start.Add(ttl)

	runCtx, cancel := context.WithDeadline(ctx, start.Add(RunWindow(ttl)))
	defer cancel()
	runCtx = context.WithValue(runCtx, lockExpiryKey{}, expiresAt)

	err = fn(runCtx)

	if !time.Now().Before(expiresAt) {
		logger.Warn("maintenance run outlived its lock, key left to expire",
			"lock_key", key, "ttl", ttl, "elapsed", time.Since(start))
		return true, err
	}
	if relErr := locker.Release(ctx, key); relErr != nil {
		logger.Warn("failed to release maintenance lock", "lock_key", key, logging.ErrAttr(relErr))
	}
	return true, err
}

// commitContext detaches ctx from the run deadline so that writes following
// a successful generation are not cut halfway. The writes still end when
// the lock expires. Outside WithLock it only adds a cancel.
func commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	expiresAt, ok := ctx.Value(lockExpiryKey{}).(time.Time)
	if !ok {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(context.WithoutCancel(ctx), expiresAt)
}
