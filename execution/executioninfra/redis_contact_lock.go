package executioninfra

import (
	"context"
	"log"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	contactLockPrefix = "converzap:contact_lock:"
	lockRetryInterval = 50 * time.Millisecond
	lockAcquireWait   = 10 * time.Second
)

// RedisContactLock serializa el procesamiento de eventos por contacto con
// SetNX. Acquire bloquea hasta obtener el lock o agotar la espera; el TTL
// libera locks de procesos caídos.
type RedisContactLock struct {
	redis *redis.Client
}

var _ execution.ContactLocker = (*RedisContactLock)(nil)

func NewRedisContactLock(redisClient *redis.Client) *RedisContactLock {
	return &RedisContactLock{redis: redisClient}
}

func (l *RedisContactLock) Acquire(ctx context.Context, contactID kernel.ContactID, ttl time.Duration) (func(), error) {
	key := contactLockPrefix + contactID.String()
	token := uuid.New().String()
	deadline := time.Now().Add(lockAcquireWait)

	for {
		ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, execution.ErrContactLocked().
				WithDetail("contact_id", contactID.String())
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	release := func() {
		// Solo libera si el lock sigue siendo nuestro; un lock expirado y
		// re-adquirido por otro proceso no debe borrarse
		current, err := l.redis.Get(context.Background(), key).Result()
		if err != nil {
			if err != redis.Nil {
				log.Printf("⚠️  Failed to check contact lock %s: %v", key, err)
			}
			return
		}
		if current == token {
			l.redis.Del(context.Background(), key)
		}
	}
	return release, nil
}
