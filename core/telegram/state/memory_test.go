package state

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreGetSetClear(t *testing.T) {
	st := NewMemoryStore()

	_, ok := st.Get(1)
	assert.False(t, ok)

	st.Set(1, NewSession("prediction", "awaiting_parameters"))
	got, ok := st.Get(1)
	require.True(t, ok)
	assert.Equal(t, "prediction", got.Flow)
	assert.Equal(t, Step("awaiting_parameters"), got.Step)
	assert.Equal(t, 1, st.Len())

	st.Clear(1)
	_, ok = st.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, st.Len())
}

func TestMemoryStoreClearIsIdempotent(t *testing.T) {
	st := NewMemoryStore()
	st.Set(7, NewSession("result_entry", "awaiting_actual_size"))

	assert.NotPanics(t, func() {
		st.Clear(7)
		st.Clear(7)
		st.Clear(404)
	})
	assert.Equal(t, 0, st.Len())
}

func TestMemoryStoreCopiesScratchData(t *testing.T) {
	st := NewMemoryStore()
	s := NewSession("result_entry", "awaiting_actual_size").With("experiment_id", "abc")
	st.Set(1, s)

	s.Data["experiment_id"] = "mutated"
	got, _ := st.Get(1)
	id, _ := got.String("experiment_id")
	assert.Equal(t, "abc", id)

	got.Data["experiment_id"] = "mutated again"
	again, _ := st.Get(1)
	id, _ = again.String("experiment_id")
	assert.Equal(t, "abc", id)
}

func TestSessionHelpersDoNotMutateReceiver(t *testing.T) {
	base := NewSession("result_entry", "awaiting_actual_size")
	next := base.With("actual_size", 42.5).At("awaiting_actual_pdi")

	_, ok := base.Float64("actual_size")
	assert.False(t, ok)
	assert.Equal(t, Step("awaiting_actual_size"), base.Step)

	v, ok := next.Float64("actual_size")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)
	assert.Equal(t, Step("awaiting_actual_pdi"), next.Step)
}

func TestMemoryStoreLockSerializesPerUser(t *testing.T) {
	st := NewMemoryStore()

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := st.Lock(42)
			defer unlock()
			n := active.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, st.(*memoryStore).lockCount())
}

func TestMemoryStoreLockIndependentUsers(t *testing.T) {
	st := NewMemoryStore()
	unlockA := st.Lock(1)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := st.Lock(2)
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for another user blocked")
	}
}

func TestMemoryStoreUnlockTwiceIsSafe(t *testing.T) {
	st := NewMemoryStore()
	unlock := st.Lock(5)
	unlock()
	assert.NotPanics(t, unlock)
	assert.Equal(t, 0, st.(*memoryStore).lockCount())
}

func (m *memoryStore) lockCount() int {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	return len(m.locks)
}
