package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mentionflow/harness/internal/adminapi"
	"github.com/mentionflow/harness/internal/adminapi/keystore"
	"github.com/mentionflow/harness/internal/chatplatform"
	"github.com/mentionflow/harness/internal/ingress"
	"github.com/mentionflow/harness/internal/ingress/admission"
	"github.com/mentionflow/harness/internal/ingress/kafkaingress"
	"github.com/mentionflow/harness/internal/ingress/socketingress"
	"github.com/mentionflow/harness/internal/kinds"
	"github.com/mentionflow/harness/internal/queue"
	"github.com/mentionflow/harness/internal/storage"
	"github.com/mentionflow/harness/internal/trigger"
	"github.com/mentionflow/harness/internal/worker"
)

// ErrFatalOrchestration wraps any sibling failure that terminates the whole
// run, the way the teacher wraps fatal server-start failures.
var ErrFatalOrchestration = errors.New("harness: fatal orchestration error")

// Deps are the dependencies Orchestrator cannot construct itself, because
// the real-time chat transport is out of scope (spec.md §1): the embedder
// supplies a chat client, an optional real-time event source, and the
// processor callback that turns a claimed event into chat platform action.
type Deps struct {
	Chat        chatplatform.Client
	EventSource chatplatform.EventSource // nil disables the socket ingress adapter
	Processor   worker.Processor
	KeyStore    keystore.Store // nil uses an in-memory store (local dev only)
}

// Orchestrator is the Harness Orchestrator (HO): it owns the structured
// concurrency scope, builds every component, and runs them as siblings of
// one errgroup.Group until a sibling fails or the process receives
// SIGINT/SIGTERM.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	instanceID string
}

// NewOrchestrator returns an Orchestrator. deps.Processor is required; a nil
// processor indicates a configuration error, matching the teacher's
// panic-on-missing-required-dependency posture for its ingestion store.
func NewOrchestrator(cfg Config, deps Deps) *Orchestrator {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if deps.Processor == nil {
		logger.Error("processor is required - cannot run harness without one")
		panic("harness: Deps.Processor cannot be nil - this indicates a configuration error")
	}

	return &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		instanceID: uuid.NewString(),
	}
}

// Run builds the DB pool, the queue store, the worker cohort, every enabled
// Ingress Adapter, and the admin HTTP server, then runs them all as
// siblings of one errgroup.Group until a sibling fails or ctx's derived
// signal context is cancelled. It blocks until shutdown completes.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("starting harness", slog.String("instance_id", o.instanceID))

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := storage.NewConnection(&o.cfg.Database)
	if err != nil {
		return fmt.Errorf("%w: database connection: %w", ErrFatalOrchestration, err)
	}
	defer o.closeBestEffort("database connection", conn)

	store := queue.NewPostgresStore(conn.DB, queue.RealClock())

	catalog, err := kinds.Load(o.kindsPath())
	if err != nil {
		return fmt.Errorf("%w: kinds catalog: %w", ErrFatalOrchestration, err)
	}

	o.logger.Info("kinds catalog loaded", slog.Int("count", len(catalog.Kinds)))

	keyStore := o.deps.KeyStore
	if keyStore == nil {
		o.logger.Warn("no operator key store configured - using in-memory store for this run")
		keyStore = keystore.NewMemoryStore()
	}

	limiter := admission.NewTokenBucketLimiter(admission.Config{
		GlobalRPS:    o.cfg.BatchCap * o.cfg.Workers,
		PerSourceRPS: o.cfg.BatchCap,
		UnAuthRPS:    1,
	})
	defer limiter.Close()

	tc := trigger.New(o.cfg.Workers)

	group, groupCtx := errgroup.WithContext(signalCtx)

	hctx := &worker.Context{
		Chat:  o.deps.Chat,
		Store: store,
		Spawn: func(task func(context.Context) error) {
			group.Go(func() error { return task(groupCtx) })
		},
	}

	for id := 0; id < o.cfg.Workers; id++ {
		w := worker.New(o.cfg.WorkerParams(id), store, tc, hctx, o.deps.Processor,
			o.logger.With(slog.String("instance_id", o.instanceID)))
		group.Go(func() error { return w.Run(groupCtx) })
	}

	if o.deps.EventSource != nil {
		listener := socketingress.New(o.deps.EventSource, store, tc, limiter, o.logger)
		group.Go(func() error { return listener.Run(groupCtx) })
	}

	if o.cfg.KafkaEnabled() {
		consumer := kafkaingress.New(kafkaingress.Config{
			Brokers: o.cfg.KafkaBrokers,
			Topic:   o.cfg.KafkaTopic,
			GroupID: o.cfg.KafkaGroupID + "-" + o.instanceID,
		}, store, tc, limiter, o.logger)
		group.Go(func() error { return consumer.Run(groupCtx) })
	}

	adminCfg := adminapi.LoadServerConfig()
	adminCfg.ShutdownTimeout = o.cfg.AdminShutdownTimeout

	if host, port, ok := splitAddr(o.cfg.AdminAddr); ok {
		adminCfg.Host = host
		adminCfg.Port = port
	}

	adminServer := adminapi.NewServer(&adminCfg, store, keyStore, limiter, o.cfg.MaxAttempts, o.cfg.MaxAge)
	group.Go(func() error { return adminServer.Start(groupCtx) })

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrFatalOrchestration, err)
	}

	o.logger.Info("harness shutdown complete", slog.String("instance_id", o.instanceID))

	return nil
}

func (o *Orchestrator) kindsPath() string {
	if o.cfg.KindsConfigPath != "" {
		return o.cfg.KindsConfigPath
	}

	return kinds.DefaultConfigPath
}

func (o *Orchestrator) closeBestEffort(name string, closer interface{ Close() error }) {
	if err := closer.Close(); err != nil {
		o.logger.Error("failed to close "+name, slog.Any("error", err))
	}
}

// splitAddr splits a host:port admin bind address. Falls back to (false) on
// malformed input so the caller keeps adminapi's own defaults.
func splitAddr(addr string) (host string, port int, ok bool) {
	h, portStr, err := net.SplitHostPort(addr)
	if err != nil || h == "" {
		return "", 0, false
	}

	p, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, false
	}

	return h, p, true
}

// Compile-time assertions that both Ingress Adapters satisfy the shared
// contract, following the teacher's var _ Interface = (*Impl)(nil) convention.
var (
	_ ingress.Adapter = (*socketingress.Listener)(nil)
	_ ingress.Adapter = (*kafkaingress.Consumer)(nil)
)
