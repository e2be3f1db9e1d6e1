// Package cache implements the Info Cache & Read API (§4.I): a memoized
// per-package JSON view, invalidated by admission (§4.F) and eviction
// (RemovePackage), with a read-through miss path against DbController.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/jsonmap"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Cache is the single in-memory map name -> view. There is no TTL;
// staleness is bounded only by explicit Invalidate calls (§4.I).
type Cache struct {
	mu       sync.RWMutex
	views    map[string]jsonmap.Map
	db       store.DbController
	resolver repository.Resolver
}

// New builds a Cache reading through db on miss, using resolver to turn a
// package's repository descriptor into download URLs.
func New(db store.DbController, resolver repository.Resolver) *Cache {
	return &Cache{
		views:    make(map[string]jsonmap.Map),
		db:       db,
		resolver: resolver,
	}
}

// Invalidate evicts name's memoized view. Safe to call unconditionally;
// a miss next read just rebuilds it. Version Admission calls this
// unconditionally before every write (§4.F step 1), and RemovePackage
// calls it on delete (§3 "Destroyed").
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	delete(c.views, name)
	c.mu.Unlock()
}

// GetPackageInfo implements the two read modes of §4.I. In normal mode
// (includeErrors=false) it populates the cache on miss and never exposes
// errors. In with-errors mode it bypasses the cache on both read and
// write and includes the package's accumulated errors — it must never
// populate the cache, so an administrative read can't pin a stale
// errors-bearing view in place of the one ordinary reads see.
func (c *Cache) GetPackageInfo(ctx context.Context, name string, includeErrors bool) (jsonmap.Map, error) {
	if includeErrors {
		return c.buildView(ctx, name, true)
	}

	c.mu.RLock()
	view, ok := c.views[name]
	c.mu.RUnlock()
	if ok {
		return view, nil
	}

	view, err := c.buildView(ctx, name, false)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.views[name] = view
	c.mu.Unlock()

	return view, nil
}

func (c *Cache) buildView(ctx context.Context, name string, includeErrors bool) (jsonmap.Map, error) {
	pkg, err := c.db.GetPackage(ctx, name)
	if err != nil {
		return nil, err
	}

	repo, err := c.resolver.Resolve(ctx, pkg.Repository)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "resolving repository for %q", name)
	}

	versions := make([]jsonmap.Map, 0, len(pkg.Versions)+len(pkg.Branches))
	for _, v := range pkg.Versions {
		item, err := viewItem(repo, v, versionref.VersionToTag(v.Version))
		if err != nil {
			return nil, err
		}
		versions = append(versions, item)
	}
	for _, b := range pkg.Branches {
		item, err := viewItem(repo, b, versionref.BranchName(b.Version))
		if err != nil {
			return nil, err
		}
		versions = append(versions, item)
	}

	view := jsonmap.Map{
		"dateAdded":  pkg.DateAdded().Format(time.RFC3339),
		"name":       pkg.Name,
		"repository": pkg.Repository,
		"categories": pkg.Categories,
		"versions":   versions,
	}
	if includeErrors {
		view["errors"] = pkg.Errors
	}

	return view, nil
}

// viewItem merges a PackageVersion's info with the injected version/date
// /url/downloadUrl fields (§4.I). url and downloadUrl are kept as
// duplicate fields for backward compatibility (§9 "Legacy URL fields").
func viewItem(repo repository.Repository, v catalog.PackageVersion, downloadRef string) (jsonmap.Map, error) {
	url, err := repo.GetDownloadURL(downloadRef)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "building download url for %q", downloadRef)
	}

	item := make(jsonmap.Map, len(v.Info)+4)
	for k, val := range v.Info {
		item[k] = val
	}
	item["version"] = v.Version
	item["date"] = v.Date.Format(time.RFC3339)
	item["url"] = url
	item["downloadUrl"] = url

	return item, nil
}
