package timerqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/pkg/kernel"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	timerWakesKey  = "converzap:timer_wakes" // Sorted set
	wakePrefix     = "converzap:wake:"       // JSON payload per wake
	execIndexKey   = "converzap:timers:exec:" // Set of wake IDs per execution
	claimBatchSize = 10
)

var _ execution.TimerScheduler = (*RedisTimerQueue)(nil)

// WakeHandler recibe el evento de vencimiento de un timer. El handler es el
// Dispatcher del motor; el TimerFired compite con los mensajes entrantes por
// el lock del contacto como cualquier otro evento.
type WakeHandler func(ctx context.Context, event execution.TimerFired) error

type timerWake struct {
	ID           string             `json:"id"`
	ExecutionID  kernel.ExecutionID `json:"execution_id"`
	NodeID       string             `json:"node_id"`
	ScheduledFor time.Time          `json:"scheduled_for"`
	CreatedAt    time.Time          `json:"created_at"`
}

// RedisTimerQueue cola persistente de despertares basada en un sorted set.
// Sobrevive reinicios del proceso; un wake programado antes de caer el
// proceso dispara igual cuando el worker vuelve a correr.
type RedisTimerQueue struct {
	redis         *redis.Client
	onWake        WakeHandler
	mu            sync.Mutex
	workerRunning bool
	stopChan      chan struct{}
}

func NewRedisTimerQueue(redisClient *redis.Client, handler WakeHandler) *RedisTimerQueue {
	return &RedisTimerQueue{
		redis:    redisClient,
		onWake:   handler,
		stopChan: make(chan struct{}),
	}
}

// Schedule programa un despertar para una ejecución suspendida
func (r *RedisTimerQueue) Schedule(ctx context.Context, executionID kernel.ExecutionID, nodeID string, delay time.Duration) error {
	wake := timerWake{
		ID:           uuid.New().String(),
		ExecutionID:  executionID,
		NodeID:       nodeID,
		ScheduledFor: time.Now().Add(delay),
		CreatedAt:    time.Now(),
	}

	data, err := json.Marshal(wake)
	if err != nil {
		return fmt.Errorf("failed to marshal timer wake: %w", err)
	}

	key := wakePrefix + wake.ID
	if err := r.redis.Set(ctx, key, data, delay+time.Hour).Err(); err != nil {
		return fmt.Errorf("failed to store timer wake: %w", err)
	}

	// Índice por ejecución para poder cancelar en reset/cancel
	indexKey := execIndexKey + executionID.String()
	if err := r.redis.SAdd(ctx, indexKey, wake.ID).Err(); err != nil {
		return fmt.Errorf("failed to index timer wake: %w", err)
	}
	r.redis.Expire(ctx, indexKey, delay+time.Hour)

	score := float64(wake.ScheduledFor.Unix())
	if err := r.redis.ZAdd(ctx, timerWakesKey, &redis.Z{
		Score:  score,
		Member: wake.ID,
	}).Err(); err != nil {
		return fmt.Errorf("failed to schedule timer wake: %w", err)
	}

	log.Printf("⏰ Scheduled timer wake %s for execution %s node %s (delay: %v)",
		wake.ID, executionID, nodeID, delay)

	return nil
}

// Cancel elimina todos los despertares pendientes de una ejecución
func (r *RedisTimerQueue) Cancel(ctx context.Context, executionID kernel.ExecutionID) error {
	indexKey := execIndexKey + executionID.String()
	wakeIDs, err := r.redis.SMembers(ctx, indexKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list timer wakes: %w", err)
	}

	for _, wakeID := range wakeIDs {
		r.redis.ZRem(ctx, timerWakesKey, wakeID)
		r.redis.Del(ctx, wakePrefix+wakeID)
	}
	if err := r.redis.Del(ctx, indexKey).Err(); err != nil {
		return err
	}

	if len(wakeIDs) > 0 {
		log.Printf("🗑️  Cancelled %d timer wake(s) for execution %s", len(wakeIDs), executionID)
	}
	return nil
}

// StartWorker arranca el loop de polling
func (r *RedisTimerQueue) StartWorker(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.workerRunning {
		log.Println("⚠️  Timer queue worker already running")
		return
	}

	r.workerRunning = true
	log.Println("🚀 Starting timer queue worker...")

	go r.workerLoop(ctx)
}

// StopWorker detiene el loop de polling
func (r *RedisTimerQueue) StopWorker() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.workerRunning {
		return
	}

	log.Println("🛑 Stopping timer queue worker...")
	close(r.stopChan)
	r.workerRunning = false
}

func (r *RedisTimerQueue) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⏹️  Timer queue worker stopped (context done)")
			return
		case <-r.stopChan:
			log.Println("⏹️  Timer queue worker stopped")
			return
		case <-ticker.C:
			if err := r.processDueWakes(ctx); err != nil {
				log.Printf("❌ Error processing due timer wakes: %v", err)
			}
		}
	}
}

func (r *RedisTimerQueue) processDueWakes(ctx context.Context) error {
	now := float64(time.Now().Unix())

	wakeIDs, err := r.redis.ZRangeByScore(ctx, timerWakesKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: claimBatchSize,
	}).Result()

	if err != nil {
		return fmt.Errorf("failed to fetch due timer wakes: %w", err)
	}

	if len(wakeIDs) == 0 {
		return nil
	}

	for _, wakeID := range wakeIDs {
		// ZRem como claim atómico: si otro worker lo removió primero, lo salta
		removed, err := r.redis.ZRem(ctx, timerWakesKey, wakeID).Result()
		if err != nil || removed == 0 {
			continue
		}

		go r.fireWake(context.Background(), wakeID)
	}

	return nil
}

func (r *RedisTimerQueue) fireWake(ctx context.Context, wakeID string) {
	key := wakePrefix + wakeID
	data, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		log.Printf("❌ Failed to retrieve timer wake %s: %v", wakeID, err)
		return
	}

	var wake timerWake
	if err := json.Unmarshal([]byte(data), &wake); err != nil {
		log.Printf("❌ Failed to unmarshal timer wake %s: %v", wakeID, err)
		return
	}

	if r.onWake != nil {
		event := execution.TimerFired{
			ExecutionID: wake.ExecutionID,
			NodeID:      wake.NodeID,
		}
		if err := r.onWake(ctx, event); err != nil {
			log.Printf("❌ Failed to handle timer wake %s: %v", wakeID, err)
			return
		}
	}

	r.redis.Del(ctx, key)
	r.redis.SRem(ctx, execIndexKey+wake.ExecutionID.String(), wakeID)
	log.Printf("✅ Fired timer wake %s (execution %s)", wakeID, wake.ExecutionID)
}

// GetPendingCount retorna la cantidad de despertares pendientes
func (r *RedisTimerQueue) GetPendingCount(ctx context.Context) (int64, error) {
	return r.redis.ZCard(ctx, timerWakesKey).Result()
}
