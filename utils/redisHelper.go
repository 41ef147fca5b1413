package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

var ErrLockNotObtained = errors.New("could not obtain lock")

// ObtainLock takes a short-lived redis lock on lockType:id, retrying for up to wait.
// A nil locker yields a no-op release so callers can run without redis.
func ObtainLock(ctx context.Context, locker *redislock.Client, logger *logrus.Logger, lockType string, id string, ttl time.Duration, wait time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, id)

	var opts *redislock.Options
	if wait > 0 {
		opts = &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(wait/(100*time.Millisecond))),
		}
	}
	lock, err := locker.Obtain(ctx, lockKey, ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	} else if err != nil {
		if logger != nil {
			logger.WithFields(logrus.Fields{
				"lock": lockKey,
			}).Warn("error obtaining lock: " + err.Error())
		}
		return nil, err
	}
	return func() {
		// use a fresh context: the request context may already be cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lock.Release(releaseCtx)
	}, nil
}
