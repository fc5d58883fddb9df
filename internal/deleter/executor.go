// Package deleter searches NerdGraph for entities and deletes each match,
// one mutation at a time.
package deleter

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
)

// EntityAPI is the slice of NerdGraph the executor needs.
type EntityAPI interface {
	SearchEntities(ctx context.Context, accountID int, query string) (*nerdgraph.SearchResult, error)
	DeleteEntity(ctx context.Context, e nerdgraph.Entity) error
}

// Executor runs one search-then-delete pass. It is not safe for concurrent
// use; a run owns its executor.
type Executor struct {
	api     EntityAPI
	out     printer
	logger  *zap.Logger
	limiter *rate.Limiter
	dryRun  bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRateLimit caps delete requests per second. Zero or less disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(e *Executor) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		} else {
			e.limiter = nil
		}
	}
}

// WithDryRun lists matches without sending any delete mutation.
func WithDryRun(dryRun bool) Option {
	return func(e *Executor) { e.dryRun = dryRun }
}

// NewExecutor creates an Executor that writes its transcript to out.
func NewExecutor(api EntityAPI, out io.Writer, opts ...Option) *Executor {
	e := &Executor{
		api:    api,
		out:    printer{w: out},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run searches for entities matching query in accountID and requests the
// deletion of each one, sequentially and in search order.
//
// The returned error is nil when every deletion succeeded or nothing matched,
// wraps ErrPartialFailure when some deletions failed, and otherwise reports a
// search failure or cancellation. The Result is non-nil whenever the search
// succeeded.
func (e *Executor) Run(ctx context.Context, accountID int, query string) (*Result, error) {
	e.out.searching(query, accountID)

	found, err := e.api.SearchEntities(ctx, accountID, query)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		e.out.searchFailed(err)
		e.logger.Error("Entity search failed", zap.Error(err), zap.Bool("auth_error", nerdgraph.IsAuthError(err)))
		return nil, fmt.Errorf("entity search failed: %w", err)
	}

	result := &Result{
		Found:    len(found.Entities),
		DryRun:   e.dryRun,
		Outcomes: make([]Outcome, 0, len(found.Entities)),
	}
	if result.Found == 0 {
		e.out.noneFound()
		e.logger.Info("No entities matched; nothing to delete")
		return result, nil
	}

	e.out.found(found, e.dryRun)
	if found.Truncated {
		e.logger.Warn("Search returned more entities than one page; only the first page is processed",
			zap.Int("total", found.Total), zap.Int("page", len(found.Entities)))
	}
	e.out.deletionPhase(e.dryRun)

	for i, entity := range found.Entities {
		if e.dryRun {
			e.out.wouldDelete(entity)
			result.Outcomes = append(result.Outcomes, Outcome{Entity: entity, Status: StatusDryRun})
			continue
		}

		// Cancellation is only honoured between entities; the rest stay PENDING.
		if err := e.wait(ctx); err != nil {
			return e.interrupt(result, found.Entities[i:], err)
		}

		// The in-flight mutation is bounded by the HTTP client timeout, not by
		// cancellation, so a deletion the server performed is reported as such.
		outcome := e.deleteOne(context.WithoutCancel(ctx), entity)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Status == StatusSuccess {
			result.Deleted++
		} else {
			result.Failed++
		}
	}

	e.out.summary(result)
	e.logger.Info("Run complete",
		zap.Int("found", result.Found),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
		zap.Bool("dry_run", result.DryRun))
	return result, result.Err()
}

func (e *Executor) deleteOne(ctx context.Context, entity nerdgraph.Entity) Outcome {
	outcome := Outcome{Entity: entity, Status: StatusPending}
	e.out.deleting(entity)
	fields := []zap.Field{
		zap.String("guid", entity.GUID),
		zap.String("type", entity.Type),
		zap.String("name", entity.Name),
	}

	if err := e.api.DeleteEntity(ctx, entity); err != nil {
		e.out.failure(err)
		e.logger.Warn("Entity deletion failed", append(fields, zap.Error(err))...)
		outcome.Status, outcome.Err = StatusFailed, err
		return outcome
	}
	e.out.success()
	e.logger.Debug("Entity deleted", fields...)
	outcome.Status = StatusSuccess
	return outcome
}

func (e *Executor) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (e *Executor) interrupt(result *Result, unprocessed []nerdgraph.Entity, cause error) (*Result, error) {
	result.Interrupted = true
	for _, entity := range unprocessed {
		result.Outcomes = append(result.Outcomes, Outcome{Entity: entity, Status: StatusPending})
	}
	remaining := len(unprocessed)
	if remaining > 0 {
		e.out.interrupted(remaining)
	}
	e.out.summary(result)
	e.logger.Warn("Run interrupted",
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
		zap.Int("not_processed", remaining))
	return result, fmt.Errorf("run interrupted: %w", cause)
}
