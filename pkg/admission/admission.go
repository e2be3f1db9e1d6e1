// Package admission implements Version Admission (§4.F): the decision to
// add or update a single ref under a package, gated by the Metadata
// Validator and followed by a write-through to the store.
package admission

import (
	"context"
	"time"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/metadata"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Admit runs §4.F for one (packageName, ref) pair. ref is the full
// stored ref: a bare semver for a release, or a '~'-prefixed branch name.
// rawInfo is the decoded package.json-equivalent document fetched at the
// ref's commit; date and sha describe that commit.
//
// Admit invalidates the cache entry for packageName unconditionally
// before doing anything else (§4.F step 1, §9 cache invalidation
// ordering), so a concurrent reader either sees the prior committed
// value or misses and reloads post-write — never a stale value after
// this call's write commits.
//
// updated reports whether this was a first-time admission (true) versus
// a refresh of an already-stored ref (false); the Reconciler uses it only
// to decide whether to log "added".
func Admit(ctx context.Context, db store.DbController, c *cache.Cache, packageName, ref string, rawInfo interface{}, date time.Time, sha string) (updated bool, err error) {
	c.Invalidate(packageName)

	kind, err := versionref.Classify(ref)
	if err != nil {
		return false, err
	}

	compareVersion := ref
	if kind == versionref.KindBranch {
		compareVersion = versionref.BranchName(ref)
	}

	info, err := metadata.Validate(rawInfo, compareVersion, kind, packageName)
	if err != nil {
		return false, err
	}

	pv := catalog.PackageVersion{
		Version: ref,
		Date:    date,
		Info:    info,
		SHA:     sha,
	}

	if kind == versionref.KindBranch {
		return admitBranch(ctx, db, packageName, pv)
	}
	return admitRelease(ctx, db, packageName, pv)
}

func admitBranch(ctx context.Context, db store.DbController, name string, pv catalog.PackageVersion) (bool, error) {
	branchName := versionref.BranchName(pv.Version)

	has, err := db.HasBranch(ctx, name, branchName)
	if err != nil {
		return false, err
	}
	if has {
		return false, db.UpdateBranch(ctx, name, pv)
	}
	return true, db.AddBranch(ctx, name, pv)
}

func admitRelease(ctx context.Context, db store.DbController, name string, pv catalog.PackageVersion) (bool, error) {
	has, err := db.HasVersion(ctx, name, pv.Version)
	if err != nil {
		return false, err
	}
	if has {
		return false, db.UpdateVersion(ctx, name, pv)
	}
	return true, db.AddVersion(ctx, name, pv)
}
