package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Abraxas-365/craftable/errx"
	"github.com/converzap/converzap/outbound"
	"github.com/converzap/converzap/pkg/config"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/go-redis/redis/v8"
)

const (
	pendingShardPrefix = "converzap:outbound:pending:" // One list per shard
	retryActionsKey    = "converzap:outbound:retries"  // Sorted set
	dequeueTimeout     = 2 * time.Second
)

var _ outbound.Queue = (*RedisQueue)(nil)

// RedisQueue cola de acciones salientes sobre listas de Redis particionadas
// por contacto. Cada worker es dueño de un shard y las acciones de un mismo
// contacto caen siempre en el mismo shard, así los mensajes de una
// conversación llegan al gateway en el orden en que se encolaron. El pool
// respeta el rate limit global del gateway; los fallos transitorios
// reintentan con backoff exponencial vía un sorted set, los rechazos
// definitivos y los fallos agotados se reportan al FailureRecorder.
type RedisQueue struct {
	redis    *redis.Client
	gateway  outbound.Gateway
	failures outbound.FailureRecorder
	cfg      config.DispatchConfig

	numShards     int
	rate          chan struct{}
	mu            sync.Mutex
	workerRunning bool
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

func NewRedisQueue(
	redisClient *redis.Client,
	gateway outbound.Gateway,
	failures outbound.FailureRecorder,
	cfg config.DispatchConfig,
) *RedisQueue {
	shards := cfg.Workers
	if shards < 1 {
		shards = 1
	}
	return &RedisQueue{
		redis:     redisClient,
		gateway:   gateway,
		failures:  failures,
		cfg:       cfg,
		numShards: shards,
		rate:      make(chan struct{}, cfg.RatePerSecond),
		stopChan:  make(chan struct{}),
	}
}

// shardFor asigna un contacto a su shard. La asignación es estable: mientras
// el número de workers no cambie, un contacto siempre cae en el mismo shard.
func (q *RedisQueue) shardFor(contactID kernel.ContactID) int {
	h := fnv.New32a()
	h.Write([]byte(contactID))
	return int(h.Sum32() % uint32(q.numShards))
}

func (q *RedisQueue) pendingKey(shard int) string {
	return fmt.Sprintf("%s%d", pendingShardPrefix, shard)
}

// Enqueue agrega una acción al shard de su contacto. No bloquea más que el
// round-trip a Redis; la entrega es asíncrona.
func (q *RedisQueue) Enqueue(ctx context.Context, req outbound.ActionRequest) error {
	action := outbound.NewAction(req)

	data, err := json.Marshal(action)
	if err != nil {
		return outbound.ErrEnqueueFailed().WithCause(err)
	}

	shard := q.shardFor(action.ContactID)
	if err := q.redis.LPush(ctx, q.pendingKey(shard), data).Err(); err != nil {
		return outbound.ErrEnqueueFailed().WithCause(err)
	}

	log.Printf("📤 Queued outbound %s action %s for contact %s (shard %d)",
		action.Kind, action.ID, action.ContactID, shard)
	return nil
}

// StartWorkers arranca el pool de workers y el refill del rate limiter
func (q *RedisQueue) StartWorkers(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.workerRunning {
		log.Println("⚠️  Outbound workers already running")
		return
	}
	q.workerRunning = true

	log.Printf("🚀 Starting %d outbound worker(s) (rate: %d/s)", q.numShards, q.cfg.RatePerSecond)

	q.wg.Add(1)
	go q.refillLoop(ctx)

	q.wg.Add(1)
	go q.retryLoop(ctx)

	for i := 0; i < q.numShards; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx, i)
	}
}

// StopWorkers detiene el pool y espera a que los workers terminen el envío
// en curso
func (q *RedisQueue) StopWorkers() {
	q.mu.Lock()
	if !q.workerRunning {
		q.mu.Unlock()
		return
	}
	q.workerRunning = false
	q.mu.Unlock()

	log.Println("🛑 Stopping outbound workers...")
	close(q.stopChan)
	q.wg.Wait()
}

// refillLoop repone los tokens del rate limiter una vez por segundo
func (q *RedisQueue) refillLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-ticker.C:
			for i := 0; i < q.cfg.RatePerSecond; i++ {
				select {
				case q.rate <- struct{}{}:
				default:
					// Bucket lleno
				}
			}
		}
	}
}

// workerLoop drena el shard del worker. Un solo worker por shard: dentro de
// una conversación la entrega sigue el orden de encolado.
func (q *RedisQueue) workerLoop(ctx context.Context, workerID int) {
	defer q.wg.Done()

	shardKey := q.pendingKey(workerID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		default:
		}

		data, err := q.redis.BRPop(ctx, dequeueTimeout, shardKey).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				log.Printf("❌ Worker %d failed to dequeue: %v", workerID, err)
				time.Sleep(time.Second)
			}
			continue
		}
		// BRPop retorna [key, value]
		if len(data) < 2 {
			continue
		}

		var action outbound.OutboundAction
		if err := json.Unmarshal([]byte(data[1]), &action); err != nil {
			log.Printf("❌ Worker %d got malformed action, dropping: %v", workerID, err)
			continue
		}

		// Token del rate limiter antes de tocar el gateway
		select {
		case <-q.rate:
		case <-q.stopChan:
			// Devolver la acción a la punta de su shard antes de salir
			q.redis.RPush(context.Background(), shardKey, data[1])
			return
		case <-ctx.Done():
			q.redis.RPush(context.Background(), shardKey, data[1])
			return
		}

		q.deliver(ctx, &action)
	}
}

func (q *RedisQueue) deliver(ctx context.Context, action *outbound.OutboundAction) {
	err := q.gateway.Send(ctx, action)
	if err == nil {
		action.MarkDelivered()
		log.Printf("✅ Delivered %s action %s to contact %s (attempt %d)",
			action.Kind, action.ID, action.ContactID, action.Attempts+1)
		return
	}

	// Un rechazo del gateway (4xx) es definitivo: reintentar mandaría el
	// mismo payload inválido otra vez
	if errx.IsType(err, errx.TypeBusiness) {
		action.MarkRejected(err)
		log.Printf("🚫 Gateway rejected action %s, not retrying: %v", action.ID, err)
		if q.failures != nil {
			q.failures.RecordDeliveryFailure(ctx, action)
		}
		return
	}

	if action.MarkFailed(err, q.cfg.MaxAttempts) {
		delay := q.backoffFor(action.Attempts)
		log.Printf("🔄 Delivery of action %s failed (attempt %d/%d), retrying in %v: %v",
			action.ID, action.Attempts, q.cfg.MaxAttempts, delay, err)
		if scheduleErr := q.scheduleRetry(ctx, action, delay); scheduleErr != nil {
			log.Printf("❌ Failed to schedule retry for action %s: %v", action.ID, scheduleErr)
		}
		return
	}

	log.Printf("💀 Action %s permanently failed after %d attempts: %v", action.ID, action.Attempts, err)
	if q.failures != nil {
		q.failures.RecordDeliveryFailure(ctx, action)
	}
}

// backoffFor calcula el backoff exponencial del intento: base * 2^(n-1)
func (q *RedisQueue) backoffFor(attempt int) time.Duration {
	return q.cfg.BaseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
}

func (q *RedisQueue) scheduleRetry(ctx context.Context, action *outbound.OutboundAction, delay time.Duration) error {
	data, err := json.Marshal(action)
	if err != nil {
		return err
	}

	score := float64(time.Now().Add(delay).Unix())
	return q.redis.ZAdd(ctx, retryActionsKey, &redis.Z{
		Score:  score,
		Member: data,
	}).Err()
}

// retryLoop mueve las acciones cuyo backoff venció de vuelta a su shard
func (q *RedisQueue) retryLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case <-ticker.C:
			if err := q.promoteDueRetries(ctx); err != nil && ctx.Err() == nil {
				log.Printf("❌ Error promoting retries: %v", err)
			}
		}
	}
}

func (q *RedisQueue) promoteDueRetries(ctx context.Context) error {
	now := float64(time.Now().Unix())

	members, err := q.redis.ZRangeByScore(ctx, retryActionsKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 50,
	}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		removed, err := q.redis.ZRem(ctx, retryActionsKey, member).Result()
		if err != nil || removed == 0 {
			continue
		}

		var action outbound.OutboundAction
		if err := json.Unmarshal([]byte(member), &action); err != nil {
			log.Printf("❌ Malformed retry entry, dropping: %v", err)
			continue
		}

		key := q.pendingKey(q.shardFor(action.ContactID))
		if err := q.redis.LPush(ctx, key, member).Err(); err != nil {
			log.Printf("❌ Failed to requeue retry: %v", err)
		}
	}
	return nil
}

// PendingCount retorna la cantidad de acciones en cola sumando los shards
func (q *RedisQueue) PendingCount(ctx context.Context) (int64, error) {
	var total int64
	for i := 0; i < q.numShards; i++ {
		count, err := q.redis.LLen(ctx, q.pendingKey(i)).Result()
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}
