package locks

import (
	"context"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Locker hands out non-blocking, per-key exclusive locks. It is used to keep
// two saves of the same page from racing against the store.
type Locker interface {
	// TryLock returns ok=false without waiting when key is already held.
	TryLock(ctx context.Context, key string) (unlock func(), ok bool, err error)
}

// DefaultTTL bounds how long a distributed lock survives a crashed holder.
const DefaultTTL = 30 * time.Second

func GetLocker() Locker {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		logrus.WithField("locker", "in-memory").Info("Use save locker")
		return NewMemoryLocker()
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logrus.WithError(err).WithField("addr", addr).Fatal("Could not connect to Redis")
	}
	logrus.WithFields(logrus.Fields{"locker": "redis", "addr": addr}).Info("Use save locker")
	return NewRedisLocker(rdb, DefaultTTL)
}
