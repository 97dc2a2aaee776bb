// Package persist implements the debounced index-save scheduler (component
// L): a background ticker that writes the index store to disk shortly
// after it goes dirty, plus a forced final save on shutdown.
package persist

import (
	"sync"
	"time"

	"github.com/hamr-launcher/hamrd/index"
	"github.com/hamr-launcher/hamrd/logger"
)

var log = logger.ComponentLogger("persist")

// tickInterval is how often the scheduler checks whether a save is due.
const tickInterval = 1 * time.Second

// settleDelay is how long the store must sit dirty and untouched before a
// tick is allowed to save it, so a burst of mutations coalesces into one
// write (spec §4.F/§4.L).
const settleDelay = 500 * time.Millisecond

// nowMillis is overridable for tests.
var nowMillis = func() int64 { return time.Now().UnixMilli() }

// Scheduler runs the save-on-tick loop for a single index.Store against a
// fixed path.
type Scheduler struct {
	store *index.Store
	path  string

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// New creates a scheduler for store, saving to path on each due tick.
func New(store *index.Store, path string) *Scheduler {
	return &Scheduler{store: store, path: path}
}

// Start launches the background ticker goroutine. Calling Start twice is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.maybeSave()
		}
	}
}

func (s *Scheduler) maybeSave() {
	if !s.store.IsDirty() {
		return
	}
	if nowMillis()-s.store.LastDirtyAt() < settleDelay.Milliseconds() {
		return
	}
	if err := s.store.Save(s.path); err != nil {
		log.Warnw("index save failed, will retry next tick", "path", s.path, "error", err)
		return
	}
	log.Debugw("index saved", "path", s.path)
}

// Stop halts the ticker goroutine and blocks until it has exited. Safe to
// call on a scheduler that was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
}

// Shutdown stops the ticker (if running) and forces one final unconditional
// save regardless of dirty/settle state, per spec §4.L.
func (s *Scheduler) Shutdown() error {
	s.Stop()
	return s.store.ForceSave(s.path)
}
