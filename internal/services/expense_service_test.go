package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spendwise/internal/ai"
	"spendwise/internal/amqp"
	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/live"
	"spendwise/internal/metrics"
	"spendwise/internal/storage"
	"spendwise/internal/storage/memory"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeCategorizer struct {
	mu     sync.Mutex
	answer string
	err    error
	inputs []ai.CategorizeInput
}

func (f *fakeCategorizer) Categorize(_ context.Context, in ai.CategorizeInput) (ai.CategorizeOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return ai.CategorizeOutput{}, f.err
	}
	return ai.CategorizeOutput{Category: f.answer}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []*amqp.ExpenseEvent
}

func (f *fakePublisher) PublishExpenseEvent(_ context.Context, ev *amqp.ExpenseEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

// failingStore wraps a store and fails writes on demand.
type failingStore struct {
	storage.ExpenseStore
	err error
}

func (f *failingStore) CreateExpense(ctx context.Context, e core.Expense) error {
	if f.err != nil {
		return f.err
	}
	return f.ExpenseStore.CreateExpense(ctx, e)
}

type ExpenseServiceSuite struct {
	suite.Suite
	ctx         context.Context
	store       *failingStore
	categorizer *fakeCategorizer
	publisher   *fakePublisher
	hub         *live.Hub
	metrics     *metrics.Metrics
	reported    []error
	svc         *ExpenseService
	owner       Actor
	now         time.Time
	ids         int
}

func (s *ExpenseServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &failingStore{ExpenseStore: memory.New()}
	s.categorizer = &fakeCategorizer{answer: "Food"}
	s.publisher = &fakePublisher{}
	s.hub = live.NewHub(nil)
	s.metrics = metrics.New()
	s.reported = nil
	s.owner = Actor{UserID: "u1", Role: core.RoleUser}
	s.now = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	s.ids = 0
	s.svc = NewExpenseService(s.store, s.categorizer,
		WithCache(cache.NewLRUCache[[]core.Expense](10, time.Minute)),
		WithHub(s.hub),
		WithPublisher(s.publisher),
		WithMetrics(s.metrics),
		WithFailureReporter(func(_ context.Context, _ string, err error) { s.reported = append(s.reported, err) }),
		WithClock(func() time.Time { s.now = s.now.Add(time.Second); return s.now }),
		WithIDGenerator(func() string { s.ids++; return fmt.Sprintf("e%d", s.ids) }),
	)
}

func (s *ExpenseServiceSuite) input(title string, cents int64, category string) ExpenseInput {
	return ExpenseInput{
		Title:    title,
		Amount:   core.Money{Cents: cents},
		Category: category,
		Date:     core.NewDate(2024, 1, 15),
	}
}

func (s *ExpenseServiceSuite) TestCreateWithoutCategoryUsesModelAnswer() {
	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, ""))
	s.Require().NoError(err)

	s.Equal("Food", e.Category)
	s.Equal([]ai.CategorizeInput{{Title: "Latte", Description: ""}}, s.categorizer.inputs)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Categorizations.WithLabelValues(metrics.ResultOK)))

	stored, err := s.svc.Get(s.ctx, s.owner, "u1", e.ID)
	s.Require().NoError(err)
	s.Equal("Food", stored.Category)
}

func (s *ExpenseServiceSuite) TestCreateKeepsModelCategoryCasing() {
	s.categorizer.answer = "  iPhone   accessories "

	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Case", 1999, ""))
	s.Require().NoError(err)
	s.Equal("iPhone accessories", e.Category)
}

func (s *ExpenseServiceSuite) TestCreateFallsBackToOther() {
	s.categorizer.err = errors.New("model timeout")

	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "  "))
	s.Require().NoError(err)
	s.Equal(core.FallbackCategory, e.Category)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Categorizations.WithLabelValues(metrics.ResultFallback)))

	s.categorizer.err = ai.ErrNotConfigured
	e, err = s.svc.Create(s.ctx, s.owner, "u1", s.input("Bus", 250, ""))
	s.Require().NoError(err)
	s.Equal(core.FallbackCategory, e.Category)
}

func (s *ExpenseServiceSuite) TestCreateWithCategorySkipsInference() {
	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Rent", 90000, "  bills "))
	s.Require().NoError(err)
	s.Equal("Bills", e.Category)
	s.Empty(s.categorizer.inputs)
}

func (s *ExpenseServiceSuite) TestCreateValidation() {
	tests := []struct {
		name string
		in   ExpenseInput
		want error
	}{
		{"short title", s.input("a", 100, "Food"), core.ErrTitleTooShort},
		{"zero amount", s.input("Lunch", 0, "Food"), core.ErrInvalidAmount},
		{"missing date", ExpenseInput{Title: "Lunch", Amount: core.Money{Cents: 1}}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.svc.Create(s.ctx, s.owner, "u1", tt.in)
			s.ErrorIs(err, tt.want)
		})
	}
	s.Empty(s.categorizer.inputs, "invalid input must not reach the model")
	s.Empty(s.reported)
}

func (s *ExpenseServiceSuite) TestCreateForOtherUserIsForbidden() {
	_, err := s.svc.Create(s.ctx, s.owner, "u2", s.input("Latte", 450, "Food"))
	s.ErrorIs(err, core.ErrForbidden)
	s.Len(s.reported, 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ExpenseMutations.WithLabelValues("create", metrics.ResultError)))

	admin := Actor{UserID: "root", Role: core.RoleAdmin}
	e, err := s.svc.Create(s.ctx, admin, "u2", s.input("Latte", 450, "Food"))
	s.Require().NoError(err)
	s.Equal("u2", e.UserID)
}

func (s *ExpenseServiceSuite) TestStorageFailureIsReported() {
	s.store.err = errors.New("disk full")

	_, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.Require().Error(err)
	s.Contains(err.Error(), "disk full")
	s.Len(s.reported, 1)
	s.Empty(s.publisher.events)
}

func (s *ExpenseServiceSuite) TestListIsOrderedAndCached() {
	_, err := s.svc.Create(s.ctx, s.owner, "u1", ExpenseInput{Title: "Old", Amount: core.Money{Cents: 100}, Category: "Food", Date: core.NewDate(2024, 1, 1)})
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, s.owner, "u1", ExpenseInput{Title: "New", Amount: core.Money{Cents: 200}, Category: "Food", Date: core.NewDate(2024, 1, 10)})
	s.Require().NoError(err)

	list, err := s.svc.List(s.ctx, s.owner, "u1")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("New", list[0].Title)

	list[0].Title = "mutated by caller"
	again, err := s.svc.List(s.ctx, s.owner, "u1")
	s.Require().NoError(err)
	s.Equal("New", again[0].Title)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.CacheRequests.WithLabelValues("hit")))
}

func (s *ExpenseServiceSuite) TestUpdate() {
	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.Require().NoError(err)

	in := s.input("Flat white", 500, "")
	first, err := s.svc.Update(s.ctx, s.owner, "u1", e.ID, in)
	s.Require().NoError(err)
	second, err := s.svc.Update(s.ctx, s.owner, "u1", e.ID, in)
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Equal("Food", second.Category, "blank category keeps the stored one")
	s.Equal(e.Timestamp, second.Timestamp)
	s.Len(s.categorizer.inputs, 0)

	_, err = s.svc.Update(s.ctx, s.owner, "u1", "missing", in)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *ExpenseServiceSuite) TestDelete() {
	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Delete(s.ctx, s.owner, "u1", e.ID))
	s.ErrorIs(s.svc.Delete(s.ctx, s.owner, "u1", e.ID), core.ErrNotFound)

	list, err := s.svc.List(s.ctx, s.owner, "u1")
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *ExpenseServiceSuite) TestMutationsPublishEvents() {
	e, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.Require().NoError(err)
	_, err = s.svc.Update(s.ctx, s.owner, "u1", e.ID, s.input("Latte", 500, "Food"))
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Delete(s.ctx, s.owner, "u1", e.ID))

	s.Require().Len(s.publisher.events, 3)
	s.Equal(amqp.EventCreated, s.publisher.events[0].Type)
	s.Equal(amqp.EventUpdated, s.publisher.events[1].Type)
	s.Equal(int64(500), s.publisher.events[1].Expense.Amount.Cents)
	s.Equal(amqp.EventDeleted, s.publisher.events[2].Type)
	s.Nil(s.publisher.events[2].Expense)
}

func (s *ExpenseServiceSuite) TestPublishFailureDoesNotFailMutation() {
	s.publisher.err = errors.New("circuit breaker is open")

	_, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.NoError(err)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.AMQPPublishes.WithLabelValues(metrics.ResultError)))
	s.Empty(s.reported)
}

func (s *ExpenseServiceSuite) TestLiveSubscribersReceiveSnapshots() {
	var snaps []live.Snapshot
	unsub := s.hub.Subscribe("u1", func(snap live.Snapshot) { snaps = append(snaps, snap) })
	defer unsub()

	_, err := s.svc.Create(s.ctx, s.owner, "u1", s.input("Latte", 450, "Food"))
	s.Require().NoError(err)
	_, err = s.svc.Create(s.ctx, s.owner, "u1", s.input("Bagel", 300, "Food"))
	s.Require().NoError(err)

	s.Require().Len(snaps, 2)
	last := snaps[1]
	s.Greater(last.Seq, snaps[0].Seq)
	s.Len(last.Expenses, 2)
	s.Equal(int64(750), last.Stats.Total.Cents)
}

func TestExpenseServiceSuite(t *testing.T) {
	suite.Run(t, new(ExpenseServiceSuite))
}

func TestActor_CanAccess(t *testing.T) {
	user := Actor{UserID: "u1", Role: core.RoleUser}
	admin := Actor{UserID: "a1", Role: core.RoleAdmin}

	assert.True(t, user.CanAccess("u1"))
	assert.False(t, user.CanAccess("u2"))
	assert.True(t, admin.CanAccess("u2"))
	assert.False(t, Actor{}.CanAccess(""))
	assert.False(t, admin.CanAccess(""))
}

func TestNewExpenseService_NilCollaborators(t *testing.T) {
	svc := NewExpenseService(memory.New(), nil)
	e, err := svc.Create(context.Background(), Actor{UserID: "u1"}, "u1", ExpenseInput{
		Title:  "Latte",
		Amount: core.Money{Cents: 450},
		Date:   core.NewDate(2024, 1, 15),
	})
	require.NoError(t, err)
	assert.Equal(t, core.FallbackCategory, e.Category)
}

// pausingStore blocks the first ListExpenses after it has read the store,
// until release is closed.
type pausingStore struct {
	storage.ExpenseStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) ListExpenses(ctx context.Context, userID string, q storage.ExpenseQuery) ([]core.Expense, error) {
	list, err := p.ExpenseStore.ListExpenses(ctx, userID, q)
	p.once.Do(func() {
		close(p.read)
		<-p.release
	})
	return list, err
}

func TestList_ConcurrentWriteDoesNotCacheStaleList(t *testing.T) {
	ctx := context.Background()
	owner := Actor{UserID: "u1", Role: core.RoleUser}
	store := &pausingStore{
		ExpenseStore: memory.New(),
		read:         make(chan struct{}),
		release:      make(chan struct{}),
	}
	svc := NewExpenseService(store, nil, WithCache(cache.NewLRUCache[[]core.Expense](10, time.Minute)))

	done := make(chan []core.Expense)
	go func() {
		list, err := svc.List(ctx, owner, "u1")
		assert.NoError(t, err)
		done <- list
	}()
	<-store.read

	_, err := svc.Create(ctx, owner, "u1", ExpenseInput{
		Title:    "Latte",
		Amount:   core.Money{Cents: 450},
		Category: "Food",
		Date:     core.NewDate(2024, 1, 15),
	})
	require.NoError(t, err)

	close(store.release)
	assert.Empty(t, <-done, "the in-flight read started before the write")

	list, err := svc.List(ctx, owner, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Latte", list[0].Title)
}
