package services

import (
	"context"
	"sync"
	"time"
)

// Failure is one write that failed for a reason other than bad input.
type Failure struct {
	At        time.Time
	Operation string
	Message   string
}

// FailureLog keeps the most recent failures reported by ExpenseService so
// operators can see them without reading logs. Report is a FailureReporter.
type FailureLog struct {
	mu    sync.Mutex
	items []Failure
	next  int
	full  bool
	now   func() time.Time
}

func NewFailureLog(size int) *FailureLog {
	if size < 1 {
		size = 1
	}
	return &FailureLog{items: make([]Failure, size), now: time.Now}
}

// Report records err under op, overwriting the oldest entry when full.
func (f *FailureLog) Report(_ context.Context, op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[f.next] = Failure{At: f.now().UTC(), Operation: op, Message: err.Error()}
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
}

// Recent returns the retained failures, newest first.
func (f *FailureLog) Recent() []Failure {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.next
	if f.full {
		n = len(f.items)
	}
	out := make([]Failure, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, f.items[(f.next-i+len(f.items))%len(f.items)])
	}
	return out
}
