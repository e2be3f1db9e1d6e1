// Package registry implements the Registry Facade (§4.J): the public
// entry points a frontend (out of scope here) drives — add, remove,
// read, search, categorize and trigger/sweep updates.
package registry

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/charmbracelet/log"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/jsonmap"
	"github.com/dalee/vcsreg/pkg/metadata"
	"github.com/dalee/vcsreg/pkg/queue"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Registry is the facade wiring the store, cache, repository resolver
// and update queue together behind the operations §4.J names.
type Registry struct {
	db       store.DbController
	resolver repository.Resolver
	cache    *cache.Cache
	queue    *queue.Queue
	logger   *log.Logger
}

// New builds a Registry over its capabilities.
func New(db store.DbController, resolver repository.Resolver, c *cache.Cache, q *queue.Queue, logger *log.Logger) *Registry {
	return &Registry{db: db, resolver: resolver, cache: c, queue: q, logger: logger}
}

// AddPackage implements §4.J addPackage: resolve the repository, pick a
// usable branch description to bootstrap from, validate it, persist, and
// enqueue the first reconcile.
func (r *Registry) AddPackage(ctx context.Context, descriptor catalog.Descriptor, owner string) (*catalog.Package, error) {
	repo, err := r.resolver.Resolve(ctx, descriptor)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "resolving repository")
	}

	branches, err := repo.GetBranches(ctx)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "listing branches")
	}

	info, branchName, err := probeBranches(ctx, repo, orderBranches(branches))
	if err != nil {
		return nil, err
	}

	validated, err := metadata.Validate(info, branchName, versionref.KindBranch, "")
	if err != nil {
		return nil, err
	}

	name := validated.GetStringDefault("name", "")

	pkg := catalog.NewPackage(name, owner, descriptor)
	if err := r.db.AddPackage(ctx, pkg); err != nil {
		return nil, err
	}

	r.queue.TriggerUpdate(name)

	return pkg, nil
}

// orderBranches puts "master" first if present, keeping every other
// branch in the order the adapter returned it (§9 "Repository selection
// in addPackage").
func orderBranches(branches []repository.RefCommit) []repository.RefCommit {
	ordered := make([]repository.RefCommit, 0, len(branches))
	for _, b := range branches {
		if b.Ref == "master" {
			ordered = append(ordered, b)
		}
	}
	for _, b := range branches {
		if b.Ref != "master" {
			ordered = append(ordered, b)
		}
	}
	return ordered
}

// probeBranches tries each branch in order until one yields a
// JSON-parseable description, silently swallowing failures while probing
// (§9 "Silent swallow in the source"), but failing hard if none work.
func probeBranches(ctx context.Context, repo repository.Repository, branches []repository.RefCommit) (interface{}, string, error) {
	for _, b := range branches {
		var buf bytes.Buffer
		if err := repo.ReadFile(ctx, b.Commit.SHA, repository.MetadataPath, &buf); err != nil {
			continue
		}

		var info interface{}
		if err := json.Unmarshal(buf.Bytes(), &info); err != nil {
			continue
		}

		return info, b.Ref, nil
	}

	return nil, "", regerr.New(regerr.NoUsablePackageDescription, "no branch yielded a usable package description")
}

// RemovePackage persists the deletion (ownership enforced by the store)
// and evicts the cache entry (§3 "Destroyed").
func (r *Registry) RemovePackage(ctx context.Context, name, owner string) error {
	if err := r.db.RemovePackage(ctx, name, owner); err != nil {
		return err
	}
	r.cache.Invalidate(name)
	return nil
}

// GetPackageInfo implements §4.I's two read modes; a NotFound miss
// returns (nil, nil) — "view | null" per §6.
func (r *Registry) GetPackageInfo(ctx context.Context, name string, includeErrors bool) (jsonmap.Map, error) {
	view, err := r.cache.GetPackageInfo(ctx, name, includeErrors)
	if err != nil {
		if rerr, ok := err.(*regerr.Error); ok && rerr.Kind == regerr.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return view, nil
}

// GetPackages thin-pass-throughs to the store (§4.J).
func (r *Registry) GetPackages(ctx context.Context, owner string) ([]catalog.Summary, error) {
	return r.db.GetUserPackages(ctx, owner)
}

// SearchPackages thin-pass-throughs to the store (§4.J).
func (r *Registry) SearchPackages(ctx context.Context, keywords []string) ([]catalog.Summary, error) {
	return r.db.SearchPackages(ctx, keywords)
}

// SetPackageCategories thin-pass-throughs to the store (§4.J).
func (r *Registry) SetPackageCategories(ctx context.Context, name string, categories []string) error {
	return r.db.SetPackageCategories(ctx, name, categories)
}

// TriggerPackageUpdate enqueues name for reconciliation.
func (r *Registry) TriggerPackageUpdate(name string) {
	r.queue.TriggerUpdate(name)
}

// IsPackageScheduledForUpdate reports whether name is queued or
// currently being reconciled.
func (r *Registry) IsPackageScheduledForUpdate(name string) bool {
	return r.queue.IsScheduledForUpdate(name)
}

// CheckForNewVersions sweeps every known package into the queue; callers
// wire this to an external periodic timer (§4.H).
func (r *Registry) CheckForNewVersions(ctx context.Context) error {
	return r.queue.CheckAllForNewVersions(ctx)
}

// AvailablePackages lists every catalogued package name.
func (r *Registry) AvailablePackages(ctx context.Context) ([]string, error) {
	return r.db.GetAllPackageNames(ctx)
}
