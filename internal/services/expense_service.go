package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"spendwise/internal/ai"
	"spendwise/internal/amqp"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/live"
	"spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"

	"github.com/google/uuid"
)

// ExpenseInput is the user-editable part of an expense.
type ExpenseInput struct {
	Title       string
	Description string
	Amount      core.Money
	Category    string
	Date        core.Date
}

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// FailureReporter receives every failed write that is not a validation
// error. The error is still returned to the caller.
type FailureReporter func(ctx context.Context, op string, err error)

// ExpenseService owns every expense mutation: validation, category
// inference, persistence and the fan-out that follows a successful write.
type ExpenseService struct {
	store       storage.ExpenseStore
	categorizer ai.Categorizer
	cache       *cache.LRUCache[[]core.Expense]
	hub         *live.Hub
	publisher   EventPublisher
	metrics     *metrics.Metrics
	logger      *log.Logger
	report      FailureReporter
	now         func() time.Time
	newID       func() string
}

type ExpenseOption func(*ExpenseService)

func WithCache(c *cache.LRUCache[[]core.Expense]) ExpenseOption {
	return func(s *ExpenseService) { s.cache = c }
}

func WithHub(h *live.Hub) ExpenseOption {
	return func(s *ExpenseService) { s.hub = h }
}

func WithPublisher(p EventPublisher) ExpenseOption {
	return func(s *ExpenseService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) ExpenseOption {
	return func(s *ExpenseService) { s.metrics = m }
}

func WithLogger(l *log.Logger) ExpenseOption {
	return func(s *ExpenseService) { s.logger = l.WithComponent(log.ComponentExpense) }
}

func WithFailureReporter(r FailureReporter) ExpenseOption {
	return func(s *ExpenseService) { s.report = r }
}

func WithClock(now func() time.Time) ExpenseOption {
	return func(s *ExpenseService) { s.now = now }
}

func WithIDGenerator(newID func() string) ExpenseOption {
	return func(s *ExpenseService) { s.newID = newID }
}

func NewExpenseService(store storage.ExpenseStore, categorizer ai.Categorizer, opts ...ExpenseOption) *ExpenseService {
	s := &ExpenseService{
		store:       store,
		categorizer: categorizer,
		logger:      log.Discard(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates in, resolves a blank category through the categorizer
// and stores the expense for userID.
func (s *ExpenseService) Create(ctx context.Context, actor Actor, userID string, in ExpenseInput) (core.Expense, error) {
	if err := s.authorize(ctx, log.OpCreate, actor, userID); err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:          s.newID(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Category:    core.NormalizeCategory(in.Category),
		Date:        in.Date,
		Timestamp:   s.now().UTC(),
	}
	if err := e.ValidateInput(); err != nil {
		s.countMutation(log.OpCreate, "invalid")
		return core.Expense{}, err
	}
	if e.Category == "" {
		e.Category = s.inferCategory(ctx, e)
	}
	if err := e.Validate(); err != nil {
		s.countMutation(log.OpCreate, "invalid")
		return core.Expense{}, err
	}

	if err := s.store.CreateExpense(ctx, e); err != nil {
		return core.Expense{}, s.fail(ctx, log.OpCreate, fmt.Errorf("create expense: %w", err), log.NewFields().WithUser(userID, actor.UserID).WithExpense(e))
	}

	s.countMutation(log.OpCreate, metrics.ResultOK)
	s.logger.InfoContext(ctx, "Expense created", log.NewFields().WithUser(userID, actor.UserID).WithExpense(e).ToSlice()...)
	s.afterMutation(ctx, amqp.EventCreated, e)
	return e, nil
}

// inferCategory never fails: any categorizer problem yields the fallback.
func (s *ExpenseService) inferCategory(ctx context.Context, e core.Expense) string {
	if s.categorizer == nil {
		s.countCategorization(metrics.ResultDisabled)
		return core.FallbackCategory
	}
	out, err := s.categorizer.Categorize(ctx, ai.CategorizeInput{Title: e.Title, Description: e.Description})
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		s.countCategorization(metrics.ResultDisabled)
		return core.FallbackCategory
	case err != nil:
		s.countCategorization(metrics.ResultFallback)
		s.logger.WarnContext(ctx, "Category inference failed, using fallback",
			log.NewFields().WithError(err).WithOperation(log.OpCategorize).WithExpense(e).ToSlice()...)
		return core.FallbackCategory
	}
	category := strings.Join(strings.Fields(out.Category), " ")
	if category == "" {
		s.countCategorization(metrics.ResultFallback)
		return core.FallbackCategory
	}
	s.countCategorization(metrics.ResultOK)
	return category
}

// Update replaces the editable fields of an existing expense. A blank
// category keeps the stored one.
func (s *ExpenseService) Update(ctx context.Context, actor Actor, userID, id string, in ExpenseInput) (core.Expense, error) {
	if err := s.authorize(ctx, log.OpUpdate, actor, userID); err != nil {
		return core.Expense{}, err
	}

	current, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, s.fail(ctx, log.OpUpdate, fmt.Errorf("load expense: %w", err), log.NewFields().WithUser(userID, actor.UserID))
	}

	e := current
	e.Title = strings.TrimSpace(in.Title)
	e.Description = strings.TrimSpace(in.Description)
	e.Amount = in.Amount
	e.Date = in.Date
	if c := core.NormalizeCategory(in.Category); c != "" {
		e.Category = c
	}
	if err := e.Validate(); err != nil {
		s.countMutation(log.OpUpdate, "invalid")
		return core.Expense{}, err
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.Expense{}, err
		}
		return core.Expense{}, s.fail(ctx, log.OpUpdate, fmt.Errorf("update expense: %w", err), log.NewFields().WithUser(userID, actor.UserID).WithExpense(e))
	}

	s.countMutation(log.OpUpdate, metrics.ResultOK)
	s.logger.InfoContext(ctx, "Expense updated", log.NewFields().WithUser(userID, actor.UserID).WithExpense(e).ToSlice()...)
	s.afterMutation(ctx, amqp.EventUpdated, e)
	return e, nil
}

// Delete removes an expense permanently.
func (s *ExpenseService) Delete(ctx context.Context, actor Actor, userID, id string) error {
	if err := s.authorize(ctx, log.OpDelete, actor, userID); err != nil {
		return err
	}

	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return s.fail(ctx, log.OpDelete, fmt.Errorf("delete expense: %w", err), log.NewFields().WithUser(userID, actor.UserID))
	}

	s.countMutation(log.OpDelete, metrics.ResultOK)
	s.logger.InfoContext(ctx, "Expense deleted",
		log.NewFields().WithUser(userID, actor.UserID).ToSlice()...)
	s.afterMutation(ctx, amqp.EventDeleted, core.Expense{ID: id, UserID: userID})
	return nil
}

// Get returns one expense of userID.
func (s *ExpenseService) Get(ctx context.Context, actor Actor, userID, id string) (core.Expense, error) {
	if err := s.authorize(ctx, log.OpRead, actor, userID); err != nil {
		return core.Expense{}, err
	}
	return s.store.GetExpense(ctx, userID, id)
}

// List returns every expense of userID, newest first. The slice is the
// caller's to modify.
func (s *ExpenseService) List(ctx context.Context, actor Actor, userID string) ([]core.Expense, error) {
	if err := s.authorize(ctx, log.OpList, actor, userID); err != nil {
		return nil, err
	}
	list, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(list), nil
}

// load reads through the cache. The fill is skipped when a mutation
// invalidated userID while the store was being read.
func (s *ExpenseService) load(ctx context.Context, userID string) ([]core.Expense, error) {
	var gen uint64
	if s.cache != nil {
		if list, ok := s.cache.Get(userID); ok {
			s.countCache("hit")
			return list, nil
		}
		s.countCache("miss")
		gen = s.cache.Generation(userID)
	}

	list, err := s.store.ListExpenses(ctx, userID, storage.ExpenseQuery{})
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if s.cache != nil {
		s.cache.SetIfGeneration(userID, gen, list)
	}
	return list, nil
}

// Snapshot builds the live view of userID's expenses.
func (s *ExpenseService) Snapshot(ctx context.Context, actor Actor, userID string) (live.Snapshot, error) {
	list, err := s.List(ctx, actor, userID)
	if err != nil {
		return live.Snapshot{}, err
	}
	return live.Snapshot{
		UserID:   userID,
		Stats:    core.Aggregate(list, s.now()),
		Expenses: list,
	}, nil
}

// afterMutation invalidates the cache, pushes a fresh snapshot to live
// subscribers and publishes the change event. None of these can fail the
// mutation.
func (s *ExpenseService) afterMutation(ctx context.Context, t amqp.EventType, e core.Expense) {
	if s.cache != nil {
		s.cache.Delete(e.UserID)
	}

	if s.hub != nil && s.hub.Subscribers(e.UserID) > 0 {
		// Reserve the sequence before reading so a later snapshot always
		// reflects every earlier write.
		seq := s.hub.NextSeq(e.UserID)
		list, err := s.load(ctx, e.UserID)
		if err != nil {
			s.logger.WarnContext(ctx, "Failed to load snapshot for live subscribers",
				log.NewFields().WithError(err).WithUser(e.UserID, "").ToSlice()...)
		} else {
			s.hub.Publish(live.Snapshot{
				UserID:   e.UserID,
				Seq:      seq,
				Stats:    core.Aggregate(list, s.now()),
				Expenses: slices.Clone(list),
			})
		}
	}

	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, e)); err != nil {
		s.countPublish(metrics.ResultError)
		s.logger.WarnContext(ctx, "Failed to publish expense event",
			log.NewFields().WithError(err).WithOperation(log.OpPublish).WithUser(e.UserID, "").ToSlice()...)
		return
	}
	s.countPublish(metrics.ResultOK)
}

func (s *ExpenseService) authorize(ctx context.Context, op string, actor Actor, userID string) error {
	if actor.CanAccess(userID) {
		return nil
	}
	return s.fail(ctx, op, fmt.Errorf("%s expenses of %q: %w", op, userID, core.ErrForbidden),
		log.NewFields().WithUser(userID, actor.UserID).WithErrorType(log.ErrorTypePermission))
}

// fail logs, counts and reports err, then returns it unchanged.
func (s *ExpenseService) fail(ctx context.Context, op string, err error, fields log.LogFields) error {
	s.countMutation(op, metrics.ResultError)
	s.logger.LogError(ctx, "Expense operation failed", err, op, fields)
	if s.report != nil {
		s.report(ctx, op, err)
	}
	return err
}

func (s *ExpenseService) countMutation(op, result string) {
	if s.metrics != nil {
		s.metrics.ExpenseMutations.WithLabelValues(op, result).Inc()
	}
}

func (s *ExpenseService) countCategorization(result string) {
	if s.metrics != nil {
		s.metrics.Categorizations.WithLabelValues(result).Inc()
	}
}

func (s *ExpenseService) countPublish(result string) {
	if s.metrics != nil {
		s.metrics.AMQPPublishes.WithLabelValues(result).Inc()
	}
}

func (s *ExpenseService) countCache(result string) {
	if s.metrics != nil {
		s.metrics.CacheRequests.WithLabelValues(result).Inc()
	}
}
