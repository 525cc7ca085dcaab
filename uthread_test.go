package uthread

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetForTest resets all package-level state between tests, since Init
// may only be called once per process in the real API. Tests in this
// package run serially (no t.Parallel()) for exactly this reason: the
// library's global state is a deliberate, spec-mandated design (§3), not
// a testability accident, so the tests adapt to it instead of papering
// over it with injected state.
func resetForTest(t *testing.T) {
	t.Helper()
	mu.Lock()
	stopTimerLocked()
	resetAllLocked()
	currentTID = 0
	setTotalQuantumsLocked(0)
	initialized = false
	mu.Unlock()
	identityMu.Lock()
	goroutineTID = make(map[uint64]int)
	identityMu.Unlock()
	DrainTrace()
}

func TestInitRejectsNonPositiveQuantum(t *testing.T) {
	resetForTest(t)
	err := Init(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadQuantum)

	err = Init(-5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadQuantum)
}

func TestInitRejectsDoubleInit(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(50_000))
	err := Init(50_000)
	assert.ErrorIs(t, err, ErrAlreadyInit)
}

// TestS1SingleSpawnMainYield: a single spawned thread runs once and
// returns; main observes it completed via the shared counter and the
// slot going back to UNUSED.
func TestS1SingleSpawnMainYield(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(10_000))

	var ran int32
	tid, err := Spawn(func() {
		atomic.StoreInt32(&ran, 1)
	})
	require.NoError(t, err)
	require.Equal(t, 1, tid)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ran) == 0 {
		GetTotalQuantums()
		if time.Now().After(deadline) {
			t.Fatal("spawned thread never ran")
		}
	}

	deadline = time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		state := tcbs[1].state
		mu.Unlock()
		if state == StateUnused {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("spawned thread never terminated")
		}
		GetTotalQuantums()
	}
}

// TestSleepSemantics: a worker sleeping n quantums is not observed ready
// again before total_quantums has advanced by n.
func TestSleepSemantics(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(20_000))

	done := make(chan struct{})
	var before, after int32
	_, err := Spawn(func() {
		atomic.StoreInt32(&before, int32(GetTotalQuantums()))
		_ = Sleep(3)
		atomic.StoreInt32(&after, int32(GetTotalQuantums()))
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker never finished sleeping")
	}
	assert.GreaterOrEqual(t, after-before, int32(3))
}

// TestBlockResume: a blocked thread's quantum count is frozen until
// resumed.
func TestBlockResume(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(5_000))

	var stop int32
	tid, err := Spawn(func() {
		for atomic.LoadInt32(&stop) == 0 {
			GetTotalQuantums()
		}
	})
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, Block(tid))

	q1, err := GetQuantums(tid)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	q2, err := GetQuantums(tid)
	require.NoError(t, err)
	assert.Equal(t, q1, q2, "a blocked thread's quantum count must not change")

	require.NoError(t, Resume(tid))
	time.Sleep(20 * time.Millisecond)
	atomic.StoreInt32(&stop, 1)

	q3, err := GetQuantums(tid)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q3, q2)
}

// TestSelfTerminate: a thread that terminates itself frees its slot, and
// querying it afterward is an error.
func TestSelfTerminate(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(10_000))

	var wg sync.WaitGroup
	wg.Add(1)
	tid, err := Spawn(func() {
		defer wg.Done()
		_ = Terminate(GetTID())
		t.Error("terminate(self) must never return")
	})
	require.NoError(t, err)
	wg.Wait()

	_, err = GetQuantums(tid)
	assert.ErrorIs(t, err, ErrInvalidTID)
}

// TestSlotExhaustion: once every non-main slot is used, the next spawn
// fails without mutating state.
func TestSlotExhaustion(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(1_000_000))

	for i := 1; i < MaxThreads; i++ {
		_, err := Spawn(func() { select {} })
		require.NoErrorf(t, err, "spawn %d should have succeeded", i)
	}

	_, err := Spawn(func() {})
	assert.ErrorIs(t, err, ErrNoFreeSlot)

	mu.Lock()
	used := 0
	for i := range tcbs {
		if tcbs[i].state != StateUnused {
			used++
		}
	}
	mu.Unlock()
	assert.Equal(t, MaxThreads, used)
}

// TestSpawnDeterminism checks that spawn returns the smallest free id.
func TestSpawnDeterminism(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(1_000_000))

	a, err := Spawn(func() { select {} })
	require.NoError(t, err)
	b, err := Spawn(func() { select {} })
	require.NoError(t, err)
	require.Equal(t, 1, a)
	require.Equal(t, 2, b)

	require.NoError(t, Terminate(a))
	c, err := Spawn(func() { select {} })
	require.NoError(t, err)
	assert.Equal(t, a, c, "freed slot should be reused as the new smallest id")
}

func TestBlockMainThreadFails(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(1_000_000))
	assert.ErrorIs(t, Block(0), ErrMainThread)
}

func TestSleepMainThreadFails(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(1_000_000))
	assert.ErrorIs(t, Sleep(1), ErrMainThread)
}

// TestSleepWakeCoupling checks that wakeAt != 0 implies BLOCKED, directly
// against the TCB table.
func TestSleepWakeCoupling(t *testing.T) {
	resetForTest(t)
	require.NoError(t, Init(1_000_000))

	_, err := Spawn(func() {
		_ = Sleep(50)
	})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	mu.Lock()
	for i := range tcbs {
		if tcbs[i].wakeAt != 0 {
			assert.Equal(t, StateBlocked, tcbs[i].state)
		}
	}
	mu.Unlock()
}
