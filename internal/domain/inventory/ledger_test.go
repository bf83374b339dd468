package inventory

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type recordingWriter struct {
	mu      sync.Mutex
	updates map[string]int
	err     error
}

func (w *recordingWriter) UpdateQuantity(_ context.Context, productID string, quantity int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.updates == nil {
		w.updates = make(map[string]int)
	}
	w.updates[productID] = quantity
	return w.err
}

func (w *recordingWriter) lastTotal(productID string) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	q, ok := w.updates[productID]
	return q, ok
}

func TestReserve_Succeeds(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 10)

	require.True(t, l.Reserve("p1", 4))
	assert.Equal(t, 6, l.Available("p1"))
	assert.Equal(t, 4, l.Reserved("p1"))
	assert.Equal(t, 10, l.TotalStock("p1"))
}

func TestReserve_InsufficientStock(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 3)

	require.False(t, l.Reserve("p1", 4))
	// No mutation on failure.
	assert.Equal(t, 3, l.Available("p1"))
	assert.Equal(t, 0, l.Reserved("p1"))
}

func TestReserve_UnknownProduct(t *testing.T) {
	l := NewLedger()

	assert.False(t, l.Reserve("ghost", 1))
	assert.Equal(t, 0, l.Available("ghost"))
}

func TestReserve_NonPositiveQuantity(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 10)

	assert.False(t, l.Reserve("p1", 0))
	assert.False(t, l.Reserve("p1", -2))
	assert.Equal(t, 0, l.Reserved("p1"))
}

func TestRelease_ClampsAtZero(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 10)
	require.True(t, l.Reserve("p1", 3))

	l.Release("p1", 100)
	assert.Equal(t, 0, l.Reserved("p1"))
	assert.Equal(t, 10, l.Available("p1"))

	// Releasing again is a no-op.
	l.Release("p1", 5)
	assert.Equal(t, 0, l.Reserved("p1"))
}

func TestCommit_ConsumesStock(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 10)
	require.True(t, l.Reserve("p1", 3))

	require.True(t, l.Commit(context.Background(), "p1", 3))
	assert.Equal(t, 7, l.TotalStock("p1"))
	assert.Equal(t, 0, l.Reserved("p1"))
	assert.Equal(t, 7, l.Available("p1"))
}

func TestCommit_InsufficientTotal(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 2)

	require.False(t, l.Commit(context.Background(), "p1", 3))
	assert.Equal(t, 2, l.TotalStock("p1"))
}

func TestCommit_PushesWriteBack(t *testing.T) {
	w := &recordingWriter{}
	l := NewLedger(WithStockWriter(w))
	l.SetStock("p1", 10)
	require.True(t, l.Reserve("p1", 3))

	require.True(t, l.Commit(context.Background(), "p1", 3))

	total, ok := w.lastTotal("p1")
	require.True(t, ok)
	assert.Equal(t, 7, total)
}

func TestCommit_WriteBackErrorDoesNotAffectLedger(t *testing.T) {
	w := &recordingWriter{err: errors.New("db down")}
	l := NewLedger(WithStockWriter(w))
	l.SetStock("p1", 10)

	require.True(t, l.Commit(context.Background(), "p1", 4))
	assert.Equal(t, 6, l.TotalStock("p1"))
}

func TestRestock_AddsToTotal(t *testing.T) {
	w := &recordingWriter{}
	l := NewLedger(WithStockWriter(w))
	l.SetStock("p1", 2)

	l.Restock(context.Background(), "p1", 8)
	assert.Equal(t, 10, l.TotalStock("p1"))
	assert.Equal(t, 10, l.Available("p1"))

	total, ok := w.lastTotal("p1")
	require.True(t, ok)
	assert.Equal(t, 10, total)
}

func TestSetStock_ClampsReserved(t *testing.T) {
	l := NewLedger()
	l.SetStock("p1", 10)
	require.True(t, l.Reserve("p1", 8))

	l.SetStock("p1", 5)
	assert.Equal(t, 5, l.Reserved("p1"))
	assert.Equal(t, 0, l.Available("p1"))
}

func TestSnapshot_SortedRows(t *testing.T) {
	l := NewLedger()
	l.SetStock("b", 5)
	l.SetStock("a", 3)
	require.True(t, l.Reserve("a", 1))

	rows := l.Snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, Row{ProductID: "a", Total: 3, Reserved: 1, Available: 2}, rows[0])
	assert.Equal(t, Row{ProductID: "b", Total: 5, Reserved: 0, Available: 5}, rows[1])
}

func TestConcurrentContention_ExactlyOneWinner(t *testing.T) {
	// Two sessions race for 6 of 10 units: exactly one reserve succeeds.
	for range 100 {
		l := NewLedger()
		l.SetStock("p1", 10)

		var wins sync.Map
		var wg sync.WaitGroup
		for i := range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				wins.Store(i, l.Reserve("p1", 6))
			}()
		}
		wg.Wait()

		winners := 0
		wins.Range(func(_, v any) bool {
			if v.(bool) {
				winners++
			}
			return true
		})
		require.Equal(t, 1, winners)
		require.Equal(t, 6, l.Reserved("p1"))
	}
}

func TestInvariant_RandomOperations(t *testing.T) {
	// reserved stays within [0, total] under any interleaving of operations.
	l := NewLedger()
	products := []string{"a", "b", "c"}
	for _, p := range products {
		l.SetStock(p, 50)
	}

	g := new(errgroup.Group)
	for range 8 {
		g.Go(func() error {
			r := rand.New(rand.NewSource(rand.Int63()))
			ctx := context.Background()
			for range 1000 {
				p := products[r.Intn(len(products))]
				qty := r.Intn(5) + 1
				switch r.Intn(4) {
				case 0:
					l.Reserve(p, qty)
				case 1:
					l.Release(p, qty)
				case 2:
					l.Commit(ctx, p, qty)
				case 3:
					l.Restock(ctx, p, qty)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for _, row := range l.Snapshot() {
		assert.GreaterOrEqual(t, row.Reserved, 0)
		assert.LessOrEqual(t, row.Reserved, row.Total)
		assert.GreaterOrEqual(t, row.Available, 0)
	}
}
