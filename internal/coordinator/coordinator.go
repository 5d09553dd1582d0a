// internal/coordinator/coordinator.go
// Runs many independent test units concurrently under a bounded worker
// pool, with seed-reproducible dispatch order and outcome aggregation.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
	"github.com/xkilldash9x/checkride/internal/facade"
	"github.com/xkilldash9x/checkride/internal/session"
	"github.com/xkilldash9x/checkride/internal/suite"
)

// Coordinator dispatches test units to workers and aggregates their
// outcomes. Each dispatched unit gets its own session via the manager; a
// worker slot is released only after that unit's teardown has completed,
// so no two in-flight units ever share a live session.
type Coordinator struct {
	cfg      *config.Config
	logger   *zap.Logger
	manager  *session.Manager
	registry *suite.Registry
}

// New creates a Coordinator.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	manager *session.Manager,
	registry *suite.Registry,
) (*Coordinator, error) {
	if cfg == nil || logger == nil || manager == nil || registry == nil {
		return nil, errors.New("cannot initialize coordinator with nil dependencies")
	}
	return &Coordinator{
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "coordinator")),
		manager:  manager,
		registry: registry,
	}, nil
}

// RunTestUnit executes a single test unit end to end: descriptor, session,
// facade, the unit body, and unconditional teardown. Any failure inside the
// unit is isolated into its Outcome and never aborts siblings.
func (c *Coordinator) RunTestUnit(ctx context.Context, id string) schemas.Outcome {
	start := time.Now()
	log := c.logger.With(zap.String("unit_id", id))

	fn, ok := c.registry.Lookup(id)
	if !ok {
		return schemas.Outcome{
			UnitID:   id,
			Status:   schemas.StatusError,
			Detail:   fmt.Sprintf("no test unit registered under id %q", id),
			Duration: time.Since(start),
		}
	}

	desc, err := c.manager.Describe(id)
	if err != nil {
		// Configuration errors are fatal to the unit; it never starts.
		return schemas.Outcome{UnitID: id, Status: schemas.StatusError, Detail: err.Error(), Duration: time.Since(start)}
	}

	handle, err := c.manager.Open(ctx, desc)
	if err != nil {
		log.Error("Failed to open session", zap.Error(err))
		return schemas.Outcome{UnitID: id, Status: schemas.StatusError, Detail: err.Error(), Duration: time.Since(start)}
	}

	act := facade.New(handle, c.cfg.Facade, log)
	outcome := c.classify(id, c.invoke(ctx, fn, act))
	outcome.Duration = time.Since(start)

	// Teardown runs on every exit path and reports the outcome to the
	// provider before the handle dies. A teardown error is surfaced in the
	// log but does not rewrite the unit's outcome.
	if err := c.manager.Teardown(ctx, handle, outcome); err != nil {
		log.Error("Session teardown reported errors", zap.Error(err))
	}

	log.Info("Test unit finished",
		zap.String("status", string(outcome.Status)),
		zap.Duration("duration", outcome.Duration))
	return outcome
}

// invoke runs the unit body, converting a panic into an error so one
// misbehaving unit cannot take down the run.
func (c *Coordinator) invoke(ctx context.Context, fn suite.UnitFunc, act *facade.Facade) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("test unit panicked: %v", r)
		}
	}()
	return fn(ctx, act)
}

// classify maps the unit body's error into an Outcome. An AssertionError
// is a FAIL; anything else unexpected is an ERROR.
func (c *Coordinator) classify(id string, err error) schemas.Outcome {
	switch {
	case err == nil:
		return schemas.Outcome{UnitID: id, Status: schemas.StatusPass}
	default:
		var assertion *suite.AssertionError
		if errors.As(err, &assertion) {
			return schemas.Outcome{UnitID: id, Status: schemas.StatusFail, Detail: assertion.Error()}
		}
		return schemas.Outcome{UnitID: id, Status: schemas.StatusError, Detail: err.Error()}
	}
}

// RunPlan executes every unit in the plan with at most plan.Concurrency
// active at once, in the order derived from the plan's seed. The same seed
// always yields the same start order; when the plan carries no seed a fresh
// one is generated and recorded in the result so the run can be replayed
// with --seed. A coordinator-level fault (failing to acquire a worker)
// aborts the run and is returned as an error, distinct from unit outcomes.
func (c *Coordinator) RunPlan(ctx context.Context, plan schemas.ExecutionPlan) (*schemas.AggregateResult, error) {
	concurrency := plan.Concurrency
	if concurrency <= 0 {
		concurrency = c.cfg.Runner.Concurrency
	}

	seed := plan.Seed
	if !plan.SeedSet {
		seed = time.Now().UnixNano()
		c.logger.Info("No ordering seed supplied; generated one for this run", zap.Int64("seed", seed))
	}

	order := shuffledOrder(plan.Units, seed)

	result := &schemas.AggregateResult{
		RunID:      uuid.New().String(),
		Seed:       seed,
		StartOrder: order,
		StartedAt:  time.Now().UTC(),
	}

	c.logger.Info("Starting execution plan",
		zap.String("run_id", result.RunID),
		zap.Int("units", len(order)),
		zap.Int("concurrency", concurrency),
		zap.Int64("seed", seed))

	sem := semaphore.NewWeighted(int64(concurrency))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, id := range order {
		// Acquire before dispatch so start order follows the shuffled
		// sequence even when the pool is saturated.
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			result.FinishedAt = time.Now().UTC()
			return result, fmt.Errorf("coordinator: failed to acquire worker: %w", err)
		}

		wg.Add(1)
		go func(unitID string) {
			defer wg.Done()
			// The slot frees only after RunTestUnit returns, which includes
			// the unit's teardown.
			defer sem.Release(1)

			outcome := c.RunTestUnit(ctx, unitID)

			mu.Lock()
			result.Outcomes = append(result.Outcomes, outcome)
			switch outcome.Status {
			case schemas.StatusPass:
				result.Passed++
			case schemas.StatusFail:
				result.Failed++
			default:
				result.Errored++
			}
			mu.Unlock()
		}(id)
	}

	wg.Wait()
	result.FinishedAt = time.Now().UTC()

	c.logger.Info("Execution plan finished",
		zap.String("run_id", result.RunID),
		zap.Int("passed", result.Passed),
		zap.Int("failed", result.Failed),
		zap.Int("errored", result.Errored),
		zap.Int64("seed", result.Seed))
	return result, nil
}

// shuffledOrder returns a seed-deterministic permutation of units without
// mutating the caller's slice.
func shuffledOrder(units []string, seed int64) []string {
	order := make([]string, len(units))
	copy(order, units)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}
