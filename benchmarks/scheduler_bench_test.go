package benchmarks

import (
	"sync"
	"testing"

	"github.com/nilreef/uthread"
)

// Init is a process-lifetime singleton (§3), so every benchmark in this
// file shares one initialized library instance instead of each arming
// its own timer.
var initOnce sync.Once

func ensureInit(b *testing.B) {
	var err error
	initOnce.Do(func() {
		err = uthread.Init(1_000_000)
	})
	if err != nil {
		b.Fatalf("init: %v", err)
	}
}

// Benchmark_SpawnTerminate measures the cost of the slot-acquisition and
// trampoline-handoff path: spawn a thread that immediately terminates
// itself, and wait for the slot to free before spawning the next.
func Benchmark_SpawnTerminate(b *testing.B) {
	ensureInit(b)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		done := make(chan struct{})
		tid, err := uthread.Spawn(func() {
			close(done)
		})
		if err != nil {
			b.Fatalf("spawn: %v", err)
		}
		<-done
		uthread.WaitTerminated(tid)
	}
}

// Benchmark_RoundRobinSwitch measures the throughput of the quantum-driven
// context switch: N workers each spinning on get_total_quantums until it
// advances a fixed number of times, forcing repeated preemption and
// rescheduling of every slot.
func Benchmark_RoundRobinSwitch(b *testing.B) {
	ensureInit(b)
	const workers = 8
	const quantumsPerRound = 4

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		var wg sync.WaitGroup
		wg.Add(workers)
		tids := make([]int, workers)
		for i := 0; i < workers; i++ {
			i := i
			tid, err := uthread.Spawn(func() {
				start := uthread.GetTotalQuantums()
				for uthread.GetTotalQuantums()-start < quantumsPerRound {
				}
				wg.Done()
			})
			if err != nil {
				b.Fatalf("spawn %d: %v", i, err)
			}
			tids[i] = tid
		}
		wg.Wait()
		for _, tid := range tids {
			uthread.WaitTerminated(tid)
		}
	}
}

// Benchmark_GetTotalQuantums measures the per-call overhead of the
// checkpoint safepoint on the hot read path every busy-wait scenario in
// this library relies on.
func Benchmark_GetTotalQuantums(b *testing.B) {
	ensureInit(b)
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		uthread.GetTotalQuantums()
	}
}
