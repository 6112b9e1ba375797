package main

import (
	"context"
	"log"

	"github.com/converzap/converzap/execution"
	"github.com/converzap/converzap/execution/aiprovider"
	"github.com/converzap/converzap/execution/dispatcher"
	"github.com/converzap/converzap/execution/execapi"
	"github.com/converzap/converzap/execution/execsrv"
	"github.com/converzap/converzap/execution/executioninfra"
	"github.com/converzap/converzap/execution/httpcall"
	"github.com/converzap/converzap/execution/nodeexec"
	"github.com/converzap/converzap/execution/runner"
	"github.com/converzap/converzap/execution/scheduler"
	"github.com/converzap/converzap/execution/timerqueue"
	"github.com/converzap/converzap/flow"
	"github.com/converzap/converzap/flow/flowapi"
	"github.com/converzap/converzap/flow/flowinfra"
	"github.com/converzap/converzap/outbound"
	"github.com/converzap/converzap/outbound/gateway"
	"github.com/converzap/converzap/outbound/queue"
	"github.com/converzap/converzap/pkg/config"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
)

// Container contains all application dependencies
type Container struct {
	// =================================================================
	// CONFIGURATION & INFRASTRUCTURE
	// =================================================================
	Config      *config.Config
	DB          *sqlx.DB
	RedisClient *redis.Client

	// =================================================================
	// FLOW
	// =================================================================
	FlowRepo     flow.Repository
	ScheduleRepo flow.ScheduleRepository
	TriggerIndex *flow.TriggerIndex

	// =================================================================
	// OUTBOUND 📤
	// =================================================================
	Gateway       outbound.Gateway
	OutboundQueue *queue.RedisQueue

	// =================================================================
	// EXECUTION ⚙️
	// =================================================================
	ExecutionRepo execution.Repository
	ContactLocker execution.ContactLocker
	TimerQueue    *timerqueue.RedisTimerQueue
	HTTPCaller    execution.HTTPCaller
	AIProvider    execution.CompletionProvider
	Executors     *nodeexec.Registry
	Runner        *runner.Runner
	Dispatcher    *dispatcher.Dispatcher
	ExecService   *execsrv.Service

	// =================================================================
	// SCHEDULER ⏰
	// =================================================================
	BroadcastScheduler *scheduler.BroadcastScheduler

	// =================================================================
	// API HANDLERS
	// =================================================================
	FlowHandler      *flowapi.FlowHandler
	ExecutionHandler *execapi.ExecutionHandler

	schedulerCancel context.CancelFunc
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config:      cfg,
		DB:          db,
		RedisClient: redisClient,
	}

	log.Println("📦 Initializing dependency container...")

	c.initFlowComponents()
	c.initOutboundComponents()
	c.initExecutionComponents()
	c.initSchedulerComponents()
	c.initAPIHandlers()

	log.Println("✅ Dependency container initialized successfully")
	return c
}

// =================================================================
// FLOW INITIALIZATION
// =================================================================

func (c *Container) initFlowComponents() {
	log.Println("  📋 Initializing flow components...")

	c.FlowRepo = flowinfra.NewPostgresFlowRepository(c.DB)
	c.ScheduleRepo = flowinfra.NewPostgresScheduleRepository(c.DB)
	c.TriggerIndex = flow.NewTriggerIndex()

	log.Println("  ✅ Flow components initialized")
}

// =================================================================
// OUTBOUND INITIALIZATION 📤
// =================================================================

func (c *Container) initOutboundComponents() {
	log.Println("  📤 Initializing outbound components...")

	c.Gateway = gateway.NewHTTPGateway(c.Config.Gateway)
	log.Println("    ✅ Messaging gateway initialized")

	// El recorder de fallos necesita el repo de ejecuciones, que todavía
	// no existe; la cola lo recibe después en initExecutionComponents
	log.Println("  ✅ Outbound components initialized")
}

// =================================================================
// EXECUTION INITIALIZATION ⚙️
// =================================================================

func (c *Container) initExecutionComponents() {
	log.Println("  ⚙️  Initializing execution components...")

	c.ExecutionRepo = executioninfra.NewPostgresExecutionRepository(c.DB)
	c.ContactLocker = executioninfra.NewRedisContactLock(c.RedisClient)
	log.Println("    ✅ Execution repository and contact locker initialized")

	failureRecorder := executioninfra.NewDeliveryFailureRecorder(c.ExecutionRepo)
	c.OutboundQueue = queue.NewRedisQueue(c.RedisClient, c.Gateway, failureRecorder, c.Config.Dispatch)
	log.Println("    ✅ Outbound queue initialized")

	c.HTTPCaller = httpcall.NewClient()
	c.AIProvider = aiprovider.New(c.Config.AI)
	c.Executors = nodeexec.NewRegistry(c.HTTPCaller, c.AIProvider)
	log.Println("    ✅ Node executors initialized")

	// El timer queue entrega sus wakes al dispatcher, que aún no existe;
	// el handler indirecto rompe el ciclo de construcción
	c.TimerQueue = timerqueue.NewRedisTimerQueue(c.RedisClient, func(ctx context.Context, event execution.TimerFired) error {
		return c.Dispatcher.Handle(ctx, event)
	})
	log.Println("    ✅ Timer queue initialized")

	c.Runner = runner.New(c.ExecutionRepo, c.Executors, c.OutboundQueue, c.TimerQueue)
	c.Dispatcher = dispatcher.New(c.ExecutionRepo, c.FlowRepo, c.TriggerIndex, c.ContactLocker, c.Runner)
	c.ExecService = execsrv.New(c.ExecutionRepo, c.FlowRepo, c.ContactLocker, c.Runner, c.TimerQueue)
	log.Println("    ✅ Runner, dispatcher and execution service initialized")

	// Cargar el índice de triggers con los flujos activos
	if err := c.Dispatcher.RefreshTriggers(context.Background()); err != nil {
		log.Printf("    ⚠️  Failed to load trigger index: %v", err)
	}

	log.Println("  ✅ Execution components initialized")
}

// =================================================================
// SCHEDULER INITIALIZATION ⏰
// =================================================================

func (c *Container) initSchedulerComponents() {
	log.Println("  ⏰ Initializing broadcast scheduler...")
	c.BroadcastScheduler = scheduler.NewBroadcastScheduler(c.ScheduleRepo, c.Dispatcher)
	log.Println("  ✅ Broadcast scheduler initialized")
}

// =================================================================
// API HANDLERS
// =================================================================

func (c *Container) initAPIHandlers() {
	log.Println("  🌐 Initializing API handlers...")
	c.FlowHandler = flowapi.NewFlowHandler(c.FlowRepo, c.ScheduleRepo, c.Dispatcher)
	c.ExecutionHandler = execapi.NewExecutionHandler(c.Dispatcher, c.ExecService)
	log.Println("  ✅ API handlers initialized")
}

// =================================================================
// LIFECYCLE
// =================================================================

// StartWorkers arranca los workers de background: timer queue, cola de
// salida y scheduler de broadcasts
func (c *Container) StartWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	c.schedulerCancel = cancel

	c.TimerQueue.StartWorker(ctx)
	c.OutboundQueue.StartWorkers(ctx)
	go c.BroadcastScheduler.Start(ctx)
}

func (c *Container) Cleanup() {
	log.Println("🧹 Cleaning up container resources...")

	if c.schedulerCancel != nil {
		c.schedulerCancel()
	}

	if c.BroadcastScheduler != nil {
		log.Println("  ⏰ Stopping broadcast scheduler...")
		c.BroadcastScheduler.Stop()
	}

	if c.TimerQueue != nil {
		log.Println("  ⏰ Stopping timer queue worker...")
		c.TimerQueue.StopWorker()
	}

	if c.OutboundQueue != nil {
		log.Println("  📤 Stopping outbound workers...")
		c.OutboundQueue.StopWorkers()
	}

	if c.DB != nil {
		log.Println("  🗄️  Closing database connections...")
		c.DB.Close()
	}

	if c.RedisClient != nil {
		log.Println("  🔴 Closing Redis connections...")
		c.RedisClient.Close()
	}

	log.Println("✅ Container cleanup complete")
}

func (c *Container) HealthCheck() map[string]bool {
	health := make(map[string]bool)

	if c.DB != nil {
		health["database"] = c.DB.Ping() == nil
	} else {
		health["database"] = false
	}

	if c.RedisClient != nil {
		health["redis"] = c.RedisClient.Ping(c.RedisClient.Context()).Err() == nil
	} else {
		health["redis"] = false
	}

	health["dispatcher"] = c.Dispatcher != nil
	health["runner"] = c.Runner != nil
	health["timer_queue"] = c.TimerQueue != nil
	health["outbound_queue"] = c.OutboundQueue != nil
	health["broadcast_scheduler"] = c.BroadcastScheduler != nil

	return health
}

func (c *Container) GetServiceNames() []string {
	return []string{
		"Dispatcher",
		"Runner",
		"ExecService",
		"TimerQueue",
		"OutboundQueue",
		"BroadcastScheduler",
		"AIProvider",
	}
}

func (c *Container) GetRepositoryNames() []string {
	return []string{
		"FlowRepo",
		"ScheduleRepo",
		"ExecutionRepo",
	}
}

// GetPendingTimerCount expone la cantidad de timers pendientes
func (c *Container) GetPendingTimerCount(ctx context.Context) (int64, error) {
	return c.TimerQueue.GetPendingCount(ctx)
}
