// Package queue implements the Update Queue & Worker (§4.H): a
// single-consumer FIFO of package names with set semantics on enqueue,
// drained by one persistent background worker that runs the Reconciler.
package queue

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	uuid "github.com/satori/go.uuid"

	"github.com/dalee/vcsreg/pkg/reconciler"
	"github.com/dalee/vcsreg/pkg/store"
)

// Queue is the shared state guarded by a single mutex Q (§5 "Shared
// state & discipline"): the pending name list and currentPackage. A
// condition variable bound to that mutex signals non-emptiness.
type Queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []string
	set   map[string]bool

	current string
	alive   bool

	db         store.DbController
	reconciler *reconciler.Reconciler
	logger     *log.Logger
}

// New builds an idle Queue; its worker is spawned lazily by the first
// TriggerUpdate (§4.H "If the worker task is not running ... a new one
// is spawned").
func New(db store.DbController, r *reconciler.Reconciler, logger *log.Logger) *Queue {
	q := &Queue{
		items:      make([]string, 0),
		set:        make(map[string]bool),
		db:         db,
		reconciler: r,
		logger:     logger,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// TriggerUpdate appends name to the queue if it isn't already present
// (set semantics collapse duplicates to the earliest position, §5
// "Ordering guarantees"), spawning the worker if it isn't running.
func (q *Queue) TriggerUpdate(name string) {
	q.mu.Lock()
	if !q.set[name] {
		q.items = append(q.items, name)
		q.set[name] = true
	}
	spawn := !q.alive
	if spawn {
		q.alive = true
	}
	q.mu.Unlock()

	if spawn {
		go q.run()
	}
	q.cond.Signal()
}

// IsScheduledForUpdate reports whether name is currently being processed
// or is waiting in the queue.
func (q *Queue) IsScheduledForUpdate(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current == name || q.set[name]
}

// CheckAllForNewVersions enumerates every known package and enqueues it
// (§4.H "checkAllForNewVersions"), driven by an external periodic timer
// that is not part of this package.
func (q *Queue) CheckAllForNewVersions(ctx context.Context) error {
	names, err := q.db.GetAllPackageNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		q.TriggerUpdate(name)
	}
	return nil
}

// run is the persistent worker loop. If it dies (a panic escaping a
// single Reconciler run beyond process's own recovery), it marks itself
// not-alive and returns; the next TriggerUpdate respawns a replacement
// (§5 "Worker liveness").
func (q *Queue) run() {
	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Warn("queue worker crashed, will respawn on next trigger", "panic", rec)
		}
		q.mu.Lock()
		q.alive = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		for len(q.items) == 0 {
			q.cond.Wait()
		}
		name := q.items[0]
		q.items = q.items[1:]
		delete(q.set, name)
		q.current = name
		q.mu.Unlock()

		q.process(name)

		q.mu.Lock()
		q.current = ""
		q.mu.Unlock()
	}
}

// process runs the Reconciler for one package, isolating the worker
// loop from anything escaping it (§5 "Exceptions escaping the
// Reconciler are logged at WARN and swallowed"). Each run is tagged with
// a fresh correlation id so its log lines can be grepped out of a
// worker that's been draining the queue for days.
func (q *Queue) process(name string) {
	runID := uuid.NewV4().String()

	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Warn("reconciler panicked", "package", name, "run", runID, "panic", rec)
		}
	}()

	q.logger.Debug("reconciler run starting", "package", name, "run", runID)
	if err := q.reconciler.Run(context.Background(), name); err != nil {
		q.logger.Warn("reconciler returned an error", "package", name, "run", runID, "err", err)
		return
	}
	q.logger.Debug("reconciler run finished", "package", name, "run", runID)
}
