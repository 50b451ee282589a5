// Package eventloop implements the cooperative reactor of spec.md section
// 4.C: one goroutine runs posted work and timer callbacks in order, so
// work that goes through the loop (internal/app's key and mouse handling,
// internal/video's frame timers) never runs concurrently with other loop
// work. Channel message handling does not go through the loop: each
// channel.Base calls its Handler on that channel's own reader goroutine.
package eventloop

import (
	"container/heap"
	"runtime/debug"
	"sync"
	"time"

	"github.com/breeze-rmm/spicec/internal/logging"
)

var log = logging.L("eventloop")

// Func is a unit of work run on the loop goroutine.
type Func func()

// Loop is a single-goroutine reactor: Post enqueues work from any
// goroutine, AddTimer schedules a callback at a future time, and Run
// drains both until Stop is called. Grounded on the bounded worker-pool's
// stop/drain/panic-recovery shape, reshaped from N workers pulling one
// queue to one worker servicing a task queue plus a timer heap.
type Loop struct {
	tasks    chan Func
	timers   timerHeap
	timerMu  sync.Mutex
	wake     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	doneChan chan struct{}
}

type timer struct {
	at    time.Time
	fn    Func
	index int
}

type timerHeap []*timer

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// New creates a Loop with a task queue of queueSize.
func New(queueSize int) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Loop{
		tasks:    make(chan Func, queueSize),
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Post enqueues fn to run on the loop goroutine. Safe to call from any
// goroutine, including fn itself. Returns false if the loop has stopped or
// the queue is full.
func (l *Loop) Post(fn Func) bool {
	select {
	case <-l.stopChan:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	default:
		log.Warn("event loop queue full, task dropped")
		return false
	}
}

// AddTimer schedules fn to run on the loop goroutine at `at`.
func (l *Loop) AddTimer(at time.Time, fn Func) {
	l.timerMu.Lock()
	heap.Push(&l.timers, &timer{at: at, fn: fn})
	l.timerMu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run services tasks and timers until Stop is called. It blocks the
// calling goroutine.
func (l *Loop) Run() {
	defer close(l.doneChan)
	for {
		wait := l.nextTimerWait()
		select {
		case <-l.stopChan:
			l.drainTasks()
			return
		case fn := <-l.tasks:
			l.runSafely(fn)
		case <-l.wake:
			// timer heap changed, recompute wait on next iteration
		case <-wait:
			l.fireExpiredTimers()
		}
	}
}

// nextTimerWait returns a channel that fires when the earliest timer is
// due, or a nil channel (blocks forever) if there are none.
func (l *Loop) nextTimerWait() <-chan time.Time {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	if len(l.timers) == 0 {
		return nil
	}
	d := time.Until(l.timers[0].at)
	if d < 0 {
		d = 0
	}
	return time.After(d)
}

func (l *Loop) fireExpiredTimers() {
	now := time.Now()
	for {
		l.timerMu.Lock()
		if len(l.timers) == 0 || l.timers[0].at.After(now) {
			l.timerMu.Unlock()
			return
		}
		t := heap.Pop(&l.timers).(*timer)
		l.timerMu.Unlock()
		l.runSafely(t.fn)
	}
}

func (l *Loop) drainTasks() {
	for {
		select {
		case fn := <-l.tasks:
			l.runSafely(fn)
		default:
			return
		}
	}
}

func (l *Loop) runSafely(fn Func) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("event loop task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Stop ends Run after draining the current task queue. It does not wait
// for Run to return; use Wait for that.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}

// Wait blocks until Run has returned.
func (l *Loop) Wait() {
	<-l.doneChan
}
