// Package runtime is the root object that owns every subsystem of the
// tradecore event runtime: the clock, cache, message bus, data engine,
// execution engine, and optional event store. It drives their lifecycle
// in lockstep, the same responsibility the teacher's internal/engine.Engine
// holds over its WebSocket feeds, scanner, and risk manager, generalized
// from "market-maker orchestrator" to "component lifecycle coordinator".
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"tradecore/internal/adapters"
	"tradecore/internal/bus"
	"tradecore/internal/cache"
	"tradecore/internal/clock"
	"tradecore/internal/config"
	"tradecore/internal/data"
	"tradecore/internal/eventstore"
	"tradecore/internal/execution"
	"tradecore/pkg/types"
)

// Runtime wires every subsystem together and exposes the ingress/egress
// surface spec.md §6 names: VenueIngress via its Data engine, StrategyEgress
// via its Execution engine.
type Runtime struct {
	cfg   config.Config
	clock clock.Clock
	log   *slog.Logger

	Cache     *cache.Cache
	Bus       *bus.Bus
	Data      *data.Engine
	Execution *execution.Engine
	Events    *eventstore.Store

	router *execution.Router
	cancel context.CancelFunc
}

var _ adapters.VenueIngress = (*data.Engine)(nil)
var _ adapters.StrategyEgress = (*execution.Engine)(nil)

// New constructs a Runtime from cfg. Every subsystem starts in the
// INITIALIZING lifecycle state; call Start to bring them up.
func New(cfg config.Config, log *slog.Logger) (*Runtime, error) {
	clk := clock.NewSystemClock()

	c := cache.New(cache.Config{
		MaxEntries:   cfg.Cache.MaxEntries,
		DefaultTTL:   cfg.Cache.DefaultTTL,
		ShardCount:   cfg.Cache.ShardCount,
		SnapshotPath: cfg.Cache.SnapshotPath,
	})

	b := bus.New(bus.Config{
		QueueCapacity:  cfg.Bus.QueueCapacity,
		RequestTimeout: cfg.Bus.RequestTimeout,
	}, clk, log)

	router := execution.NewRouter()
	for instrumentStr, venue := range cfg.Execution.Routes {
		instrument, err := types.NewInstrumentId(instrumentStr)
		if err != nil {
			return nil, fmt.Errorf("execution.routes: %w", err)
		}
		router.SetRoute(instrument, venue)
	}

	dataEngine := data.New(data.Config{
		RecentBarsPerSeries:      cfg.DataEngine.RecentBarsPerSeries,
		RecentTicksPerInstrument: cfg.DataEngine.RecentTicksPerInstrument,
	}, clk, b, log)

	execEngine := execution.New(clk, b, router, log)

	return &Runtime{
		cfg:       cfg,
		clock:     clk,
		log:       log.With("component", "runtime"),
		Cache:     c,
		Bus:       b,
		Data:      dataEngine,
		Execution: execEngine,
		Events:    eventstore.New(),
		router:    router,
	}, nil
}

// Clock returns the runtime's shared monotonic time source.
func (r *Runtime) Clock() clock.Clock { return r.clock }

// Router returns the venue routing table, so callers can add routes after
// construction (e.g. discovered instruments).
func (r *Runtime) Router() *execution.Router { return r.router }

// Start brings every lifecycle-managed subsystem up through
// INITIALIZED -> RUNNING concurrently via an errgroup. If any subsystem
// fails to start, the ones that did reach RUNNING are stopped again before
// the error is returned, instead of leaving a half-started runtime. Cache
// and event store have no network/goroutine startup cost and are not
// lifecycle-managed.
func (r *Runtime) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	g, _ := errgroup.WithContext(runCtx)
	for _, comp := range r.components() {
		comp := comp
		g.Go(func() error {
			if err := comp.Initialize(); err != nil {
				return err
			}
			return comp.Start()
		})
	}
	if err := g.Wait(); err != nil {
		for _, comp := range r.components() {
			_ = comp.Stop()
		}
		cancel()
		return fmt.Errorf("runtime start: %w", err)
	}

	if r.cfg.Cache.SnapshotPath != "" && r.cfg.Cache.SnapshotInterval > 0 {
		go r.Cache.PersistPeriodically(runCtx, r.cfg.Cache.SnapshotInterval, func(err error) {
			r.log.Error("periodic cache snapshot failed", "error", err)
		})
	}

	r.log.Info("runtime started")
	return nil
}

// RecordEvent appends ev to the runtime's event store. Bus subscriptions
// are topic-exact (spec §4.E), and order/bar/quote topics are per-subject
// strings built at publish time, so there is no wildcard subscription that
// would let Runtime mirror every bus message automatically; callers that
// want a durable local record subscribe to their own topics and forward
// here explicitly.
func (r *Runtime) RecordEvent(ev types.Event) int {
	return r.Events.Append(ev)
}

// Stop drives every subsystem from RUNNING back down to STOPPED, in the
// reverse dependency order of Start (execution and data stop before the
// bus they publish to; the bus stops before the cache, which has no
// goroutines to join).
func (r *Runtime) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}

	var firstErr error
	stopOrder := []lifecycleComponent{r.Execution, r.Data, r.Bus}
	for _, comp := range stopOrder {
		if err := comp.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if r.cfg.Cache.SnapshotPath != "" {
		if err := r.Cache.SaveSnapshot(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("save cache snapshot: %w", err)
		}
	}

	r.log.Info("runtime stopped")
	return firstErr
}

// lifecycleComponent is the subset of lifecycle.Base's surface Runtime
// needs to fan Start/Stop across heterogeneous subsystems.
type lifecycleComponent interface {
	Initialize() error
	Start() error
	Stop() error
}

func (r *Runtime) components() []lifecycleComponent {
	return []lifecycleComponent{r.Bus, r.Data, r.Execution}
}

// CacheStatistics implements introspection.Provider.
func (r *Runtime) CacheStatistics() cache.Statistics { return r.Cache.Statistics() }

// BusStats implements introspection.Provider.
func (r *Runtime) BusStats() bus.Stats { return r.Bus.Stats() }

// DataStats implements introspection.Provider.
func (r *Runtime) DataStats() data.Stats { return r.Data.Stats() }

// ExecutionStatistics implements introspection.Provider.
func (r *Runtime) ExecutionStatistics() execution.Statistics { return r.Execution.Statistics() }
