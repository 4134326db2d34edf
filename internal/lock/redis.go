package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLocker holds locks in Redis so several engine instances serialize on
// the same items and lots.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	log    *logrus.Logger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *logrus.Logger) *RedisLocker {
	return &RedisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), int(ttl/(50*time.Millisecond))),
		log:    log,
	}
}

// Acquire obtains every key and keeps the locks alive until release, so a
// step that runs past the TTL does not lose them.
func (r *RedisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	keys = normalize(keys)
	held := make([]*redislock.Lock, 0, len(keys))
	unlock := func() {
		for i := len(held) - 1; i >= 0; i-- {
			if err := held[i].Release(context.Background()); err != nil && r.log != nil {
				r.log.WithField("key", held[i].Key()).Warn("failed to release redis lock: " + err.Error())
			}
		}
	}

	for _, key := range keys {
		l, err := r.client.Obtain(ctx, "lock:"+key, r.ttl, &redislock.Options{RetryStrategy: r.retry})
		if err != nil {
			unlock()
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
			}
			return nil, err
		}
		held = append(held, l)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go r.keepAlive(held, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			unlock()
		})
	}, nil
}

// keepAlive refreshes held at half the TTL until stop is closed.
func (r *RedisLocker) keepAlive(held []*redislock.Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	interval := r.ttl / 2
	if interval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, l := range held {
				if err := l.Refresh(context.Background(), r.ttl, nil); err != nil && r.log != nil {
					r.log.WithField("key", l.Key()).Warn("failed to refresh redis lock: " + err.Error())
				}
			}
		}
	}
}
