package queue

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/reconciler"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store/memstore"
)

type blockingResolver struct {
	mu      sync.Mutex
	release chan struct{}
	calls   int
}

func (r *blockingResolver) Resolve(ctx context.Context, descriptor catalog.Descriptor) (repository.Repository, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	<-r.release
	return nil, assert.AnError
}

func (r *blockingResolver) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestTriggerUpdate_DedupsWhileBlocked(t *testing.T) {
	db := memstore.New()
	pkg := catalog.NewPackage("foo", "owner", catalog.Descriptor{Host: "gitlab", Path: "g/foo"})
	require.NoError(t, db.AddPackage(context.Background(), pkg))

	resolver := &blockingResolver{release: make(chan struct{})}
	c := cache.New(db, resolver)
	r := reconciler.New(db, resolver, c, newTestLogger())
	q := New(db, r, newTestLogger())

	q.TriggerUpdate("foo")
	time.Sleep(20 * time.Millisecond) // let the worker pick it up and block

	q.TriggerUpdate("foo")
	q.TriggerUpdate("foo")

	assert.True(t, q.IsScheduledForUpdate("foo"))

	q.mu.Lock()
	queueLen := len(q.items)
	q.mu.Unlock()
	assert.LessOrEqual(t, queueLen, 1)

	close(resolver.release)
}

func TestCheckAllForNewVersions_EnqueuesEveryPackage(t *testing.T) {
	db := memstore.New()
	require.NoError(t, db.AddPackage(context.Background(), catalog.NewPackage("foo", "o", catalog.Descriptor{})))
	require.NoError(t, db.AddPackage(context.Background(), catalog.NewPackage("bar", "o", catalog.Descriptor{})))

	resolver := &blockingResolver{release: make(chan struct{})}
	close(resolver.release)
	c := cache.New(db, resolver)
	r := reconciler.New(db, resolver, c, newTestLogger())
	q := New(db, r, newTestLogger())

	require.NoError(t, q.CheckAllForNewVersions(context.Background()))

	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, resolver.Calls(), 2)
}
