package gate

import (
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/campus/internal/model"
)

// fakeClock は手動で進める時計。
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance は時計を進め、期限の来たタイマーを期限順に実行する。
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

// Active は停止も発火もしていないタイマー数を返す。
func (c *fakeClock) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeSource は通知をテストから同期的に発火するSessionSource。
type fakeSource struct {
	mu        sync.Mutex
	listeners map[int]func(*model.Identity)
	nextID    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{listeners: make(map[int]func(*model.Identity))}
}

func (s *fakeSource) SubscribeToSessionChanges(cb func(*model.Identity)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *fakeSource) emit(identity *model.Identity) {
	s.mu.Lock()
	cbs := make([]func(*model.Identity), 0, len(s.listeners))
	for _, cb := range s.listeners {
		cbs = append(cbs, cb)
	}
	s.mu.Unlock()

	for _, cb := range cbs {
		cb(identity)
	}
}

func (s *fakeSource) listenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}

// countingRecorder はRecorderの記録回数を数える。
type countingRecorder struct {
	mu          sync.Mutex
	transitions []string
	ignored     int
}

func (r *countingRecorder) RecordGateTransition(from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
}

func (r *countingRecorder) RecordIgnoredNotification() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignored++
}

func user(id string) *model.Identity {
	return &model.Identity{ID: id, Email: id + "@gmail.com"}
}
