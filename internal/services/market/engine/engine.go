// Package engine orchestrates market workflows: it gates every state change
// through the transition registry, persists through versioned writes, and
// runs the post-commit effect pipeline (audit, cache, search, fan-out).
//
// Effects never roll back a committed write. Each effect failure is logged
// and counted; the caller only ever sees validation and storage errors.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/Sreddy08840/agri-connect-sub002/internal/platform/errors"
	"github.com/Sreddy08840/agri-connect-sub002/internal/platform/metrics"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/audit"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/cache"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/domain/transition"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/payments"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/realtime"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/search"
	"github.com/Sreddy08840/agri-connect-sub002/internal/services/market/storage"
)

// Cache keys for derived aggregate counts.
var (
	keyPendingListings = cache.Key("listings", "pending_review", "count")
	keyOpenOrders      = cache.Key("orders", "open", "count")
)

// Actor identifies the authenticated caller. Identity and role resolution
// happen in the external authorization collaborator; the engine trusts them.
type Actor struct {
	ID   string
	Role transition.Role
	// Trusted marks sellers whose published listings may skip review.
	Trusted bool
}

// Config wires the engine's collaborators.
type Config struct {
	Store    storage.Store
	Recorder *audit.Recorder
	Counts   *cache.Counts
	Search   *search.Synchronizer
	Hub      *realtime.Hub
	Gateway  payments.Gateway
	Metrics  *metrics.EngineMetrics
	Logger   *log.Logger
	Clock    func() time.Time
}

// Engine coordinates workflow state changes against storage and effects.
type Engine struct {
	store    storage.Store
	recorder *audit.Recorder
	counts   *cache.Counts
	search   *search.Synchronizer
	hub      *realtime.Hub
	gateway  payments.Gateway
	metrics  *metrics.EngineMetrics
	logger   *log.Logger
	clock    func() time.Time
}

// New creates an engine. Only the store is mandatory; every other
// collaborator degrades to a no-op when absent.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine store is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	gateway := cfg.Gateway
	if gateway == nil {
		gateway = &payments.StaticGateway{}
	}
	return &Engine{
		store:    cfg.Store,
		recorder: cfg.Recorder,
		counts:   cfg.Counts,
		search:   cfg.Search,
		hub:      cfg.Hub,
		gateway:  gateway,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		clock:    clock,
	}, nil
}

type effectTask struct {
	name string
	run  func(ctx context.Context) error
}

// runEffects executes post-commit effects concurrently. Failures are
// contained per effect: logged, counted, and never returned.
func (e *Engine) runEffects(ctx context.Context, tasks []effectTask) {
	group, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		group.Go(func() error {
			if err := task.run(ctx); err != nil {
				e.logf("effect %s failed: %v", task.name, err)
				if e.metrics != nil {
					e.metrics.EffectFailures.WithLabelValues(task.name).Inc()
				}
			}
			return nil
		})
	}
	_ = group.Wait()
}

func (e *Engine) publish(event realtime.Event) {
	if e.hub == nil {
		return
	}
	if event.At.IsZero() {
		event.At = e.clock().UTC()
	}
	e.hub.Publish(event)
	if e.metrics != nil {
		e.metrics.FanoutPublish.WithLabelValues(string(event.Type)).Inc()
	}
}

func (e *Engine) record(ctx context.Context, entry audit.Entry) error {
	_, err := e.recorder.Record(ctx, entry)
	return err
}

func (e *Engine) invalidateCount(ctx context.Context, key string) error {
	if e.counts == nil {
		return nil
	}
	e.counts.Invalidate(ctx, key)
	return nil
}

func (e *Engine) observeTransition(entity, outcome string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.Transitions.WithLabelValues(entity, outcome).Inc()
	if outcome == "allowed" {
		e.metrics.TransitionMS.WithLabelValues(entity).Observe(float64(e.clock().Sub(start).Milliseconds()))
	}
}

func (e *Engine) logf(format string, args ...any) {
	if e.logger == nil {
		return
	}
	e.logger.Printf(format, args...)
}

// mapStorageError converts store sentinel errors into typed domain errors.
// A version conflict means the entity changed between the caller's read and
// this write; the caller re-reads and retries against the fresh state.
func mapStorageError(err error, entityKind, entityID string) *apperrors.Error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.WithMetadata(
			apperrors.CodeNotFound,
			fmt.Sprintf("%s not found", entityKind),
			map[string]string{"EntityKind": entityKind, "EntityID": entityID},
		)
	case errors.Is(err, storage.ErrVersionConflict):
		return apperrors.WithMetadata(
			apperrors.CodeTransitionInvalid,
			"entity changed concurrently",
			map[string]string{"EntityKind": entityKind, "EntityID": entityID},
		)
	default:
		return apperrors.Wrap(apperrors.CodeStorageFailure, fmt.Sprintf("%s storage failure", entityKind), err)
	}
}

func requireRole(actor Actor, role transition.Role) *apperrors.Error {
	if actor.ID == "" {
		return apperrors.New(apperrors.CodeActorEmptyID, "actor id is required")
	}
	if actor.Role != role {
		return apperrors.WithMetadata(
			apperrors.CodeTransitionForbiddenRole,
			fmt.Sprintf("operation requires the %s role", role),
			map[string]string{"Role": string(actor.Role)},
		)
	}
	return nil
}
