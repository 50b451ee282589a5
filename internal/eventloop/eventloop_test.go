package eventloop

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPostRunsOnLoop(t *testing.T) {
	l := New(10)
	go l.Run()
	defer l.Stop()

	var count atomic.Int32
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		if !l.Post(func() { count.Add(1) }) {
			t.Fatal("Post failed")
		}
	}
	l.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks never drained")
	}
	if got := count.Load(); got != 5 {
		t.Fatalf("count = %d, want 5", got)
	}
}

func TestPostAfterStopReturnsFalse(t *testing.T) {
	l := New(1)
	go l.Run()
	l.Stop()
	l.Wait()

	if l.Post(func() {}) {
		t.Fatal("Post after Stop should return false")
	}
}

func TestQueueFullReturnsFalse(t *testing.T) {
	l := New(1)
	blocker := make(chan struct{})
	go l.Run()
	defer l.Stop()

	l.Post(func() { <-blocker })
	time.Sleep(10 * time.Millisecond) // let the loop pick up the blocker
	l.Post(func() {})                 // fills the queue (size 1)

	if l.Post(func() {}) {
		t.Fatal("Post should return false when queue is full")
	}
	close(blocker)
}

func TestStopDrainsPendingTasks(t *testing.T) {
	l := New(10)
	var count atomic.Int32
	for i := 0; i < 5; i++ {
		l.Post(func() { count.Add(1) })
	}

	go l.Run()
	l.Stop()
	l.Wait()

	if got := count.Load(); got != 5 {
		t.Fatalf("drained count = %d, want 5", got)
	}
}

func TestTimerFiresAtDueTime(t *testing.T) {
	l := New(10)
	go l.Run()
	defer l.Stop()

	fired := make(chan time.Time, 1)
	start := time.Now()
	l.AddTimer(start.Add(30*time.Millisecond), func() {
		fired <- time.Now()
	})

	select {
	case at := <-fired:
		if at.Sub(start) < 20*time.Millisecond {
			t.Fatalf("timer fired too early: %v", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestTimersFireInOrder(t *testing.T) {
	l := New(10)
	go l.Run()
	defer l.Stop()

	var order []int
	done := make(chan struct{})
	now := time.Now()
	l.AddTimer(now.Add(30*time.Millisecond), func() { order = append(order, 2) })
	l.AddTimer(now.Add(10*time.Millisecond), func() { order = append(order, 1) })
	l.AddTimer(now.Add(50*time.Millisecond), func() {
		order = append(order, 3)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timers never finished")
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("timers fired out of order: %v", order)
	}
}

func TestPanicRecovery(t *testing.T) {
	l := New(10)
	go l.Run()
	defer l.Stop()

	var ran atomic.Bool
	l.Post(func() { panic("boom") })
	done := make(chan struct{})
	l.Post(func() {
		ran.Store(true)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task after panic never ran")
	}
	if !ran.Load() {
		t.Fatal("task after a panicking task should still run")
	}
}

func TestNewClampsQueueSize(t *testing.T) {
	l := New(0)
	if cap(l.tasks) != 1 {
		t.Fatalf("queue capacity = %d, want 1", cap(l.tasks))
	}
}
