package live

import (
	"sync"
	"sync/atomic"
	"testing"

	"spendwise/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGauge struct{ n atomic.Int64 }

func (g *countingGauge) Inc() { g.n.Add(1) }
func (g *countingGauge) Dec() { g.n.Add(-1) }

func TestHub_DeliversOnlyToOwner(t *testing.T) {
	h := NewHub(nil)
	var got []Snapshot
	unsub := h.Subscribe("u1", func(s Snapshot) { got = append(got, s) })
	defer unsub()
	h.Subscribe("u2", func(Snapshot) { t.Error("u2 should not receive u1 snapshots") })

	h.Publish(Snapshot{UserID: "u1", Expenses: []core.Expense{{ID: "e1"}}})

	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].Seq)
	assert.Equal(t, "e1", got[0].Expenses[0].ID)
}

func TestHub_DropsStaleSnapshots(t *testing.T) {
	h := NewHub(nil)
	var seqs []uint64
	h.Subscribe("u1", func(s Snapshot) { seqs = append(seqs, s.Seq) })

	older := h.NextSeq("u1")
	newer := h.NextSeq("u1")
	h.Publish(Snapshot{UserID: "u1", Seq: newer})
	h.Publish(Snapshot{UserID: "u1", Seq: older})
	h.Publish(Snapshot{UserID: "u1"})

	assert.Equal(t, []uint64{2, 3}, seqs)
}

func TestHub_UnsubscribeIdempotent(t *testing.T) {
	g := &countingGauge{}
	h := NewHub(g)
	calls := 0
	unsub := h.Subscribe("u1", func(Snapshot) { calls++ })
	other := h.Subscribe("u1", func(Snapshot) {})
	assert.Equal(t, 2, h.Subscribers("u1"))
	assert.Equal(t, int64(2), g.n.Load())

	unsub()
	unsub()
	h.Publish(Snapshot{UserID: "u1"})

	assert.Zero(t, calls)
	assert.Equal(t, 1, h.Subscribers("u1"))
	assert.Equal(t, int64(1), g.n.Load())

	other()
	assert.Equal(t, 0, h.Subscribers("u1"))
	assert.Equal(t, int64(0), g.n.Load())
}

func TestHub_ConcurrentPublish(t *testing.T) {
	h := NewHub(nil)
	var (
		mu   sync.Mutex
		last uint64
		bad  bool
	)
	h.Subscribe("u1", func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Seq <= last {
			bad = true
		}
		last = s.Seq
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Publish(Snapshot{UserID: "u1"})
		}()
	}
	wg.Wait()

	assert.False(t, bad, "subscriber saw a sequence going backwards")
	assert.LessOrEqual(t, last, uint64(50))
}
