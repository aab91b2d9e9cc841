// Package worker applies expense events from the message bus to an
// external mirror such as a Google Sheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

// Mirror is the write side of an external copy of the expenses.
// Both operations must be idempotent: events may be redelivered.
type Mirror interface {
	Upsert(ctx context.Context, e core.Expense) error
	Delete(ctx context.Context, userID, expenseID string) error
}

// Consumer delivers events until ctx is done.
type Consumer interface {
	ConsumeExpenseEvents(ctx context.Context, handler amqp.EventHandler) error
}

// Stats counts what the worker has done since it started.
type Stats struct {
	Upserted int64
	Deleted  int64
	Failed   int64
}

type MirrorWorker struct {
	mirror         Mirror
	consumer       Consumer
	logger         *log.Logger
	healthInterval time.Duration

	upserted atomic.Int64
	deleted  atomic.Int64
	failed   atomic.Int64
}

func NewMirrorWorker(mirror Mirror, consumer Consumer, healthInterval time.Duration, logger *log.Logger) *MirrorWorker {
	if healthInterval <= 0 {
		healthInterval = time.Minute
	}
	return &MirrorWorker{
		mirror:         mirror,
		consumer:       consumer,
		logger:         logger.WithComponent(log.ComponentWorker),
		healthInterval: healthInterval,
	}
}

// HandleEvent applies one event to the mirror. A returned error makes the
// consumer requeue the message.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	if err := ev.Validate(); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("invalid event: %w", err)
	}

	fields := log.NewFields().WithUser(ev.UserID, "").WithOperation(log.OpSync)
	fields[log.FieldExpenseID] = ev.ExpenseID
	fields["event_type"] = string(ev.Type)

	var err error
	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		err = w.mirror.Upsert(ctx, *ev.Expense)
		if err == nil {
			w.upserted.Add(1)
		}
	case amqp.EventDeleted:
		err = w.mirror.Delete(ctx, ev.UserID, ev.ExpenseID)
		if err == nil {
			w.deleted.Add(1)
		}
	}
	if err != nil {
		w.failed.Add(1)
		w.logger.LogError(ctx, "Failed to mirror expense event", err, log.OpSync, fields)
		return fmt.Errorf("mirror %s event: %w", ev.Type, err)
	}

	w.logger.InfoContext(ctx, "Mirrored expense event", fields.ToSlice()...)
	return nil
}

// Stats returns a snapshot of the counters.
func (w *MirrorWorker) Stats() Stats {
	return Stats{
		Upserted: w.upserted.Load(),
		Deleted:  w.deleted.Load(),
		Failed:   w.failed.Load(),
	}
}

// Run consumes events and logs a periodic health line until ctx is done.
// A cancelled context is a clean stop and returns nil.
func (w *MirrorWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return w.consumer.ConsumeExpenseEvents(ctx, w.HandleEvent)
	})

	g.Go(func() error {
		ticker := time.NewTicker(w.healthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				s := w.Stats()
				w.logger.InfoContext(ctx, "Worker health check",
					"upserted", s.Upserted,
					"deleted", s.Deleted,
					"failed", s.Failed)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
