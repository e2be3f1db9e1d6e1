// Package reconciler implements the Reconciler (§4.G): for one package,
// fetch refs from its repository, admit each under strict validation,
// prune vanished refs, and persist a per-ref error report. This is the
// unit of work the Update Queue's worker runs per dequeued name.
package reconciler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/charmbracelet/log"

	"github.com/dalee/vcsreg/pkg/admission"
	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Reconciler drives one package's sync against its upstream repository.
type Reconciler struct {
	db       store.DbController
	resolver repository.Resolver
	cache    *cache.Cache
	logger   *log.Logger
}

// New builds a Reconciler over the given capabilities.
func New(db store.DbController, resolver repository.Resolver, c *cache.Cache, logger *log.Logger) *Reconciler {
	return &Reconciler{db: db, resolver: resolver, cache: c, logger: logger}
}

// fetchedRef pairs a ref with its commit and the metadata fetched at that
// commit, or the error that fetch produced.
type fetchedRef struct {
	ref    string // version string (release) or bare branch name
	commit repository.CommitInfo
	info   interface{}
	err    error
}

// Run executes §4.G for packageName. Failures intrinsic to the package
// being reconciled are recorded in the package's errors array and the
// run simply ends early; a failed write of that array is only logged.
// Run returns nil on every path.
func (r *Reconciler) Run(ctx context.Context, packageName string) error {
	pkg, err := r.db.GetPackage(ctx, packageName)
	if err != nil {
		r.logger.Warn("reconciler: could not load snapshot, skipping", "package", packageName, "err", err)
		return r.abort(ctx, packageName, fmt.Sprintf("Error getting package info: %v", err))
	}

	repo, err := r.resolver.Resolve(ctx, pkg.Repository)
	if err != nil {
		return r.abort(ctx, packageName, fmt.Sprintf("Error accessing repository: %v", err))
	}

	tags, branches, gotAll := r.fetchRefs(ctx, repo)

	errs := make([]string, 0)
	existing := make(map[string]bool, len(tags)+len(branches))

	for _, fr := range r.admitTags(ctx, repo, tags) {
		existing[fr.ref] = true
		if fr.err != nil {
			errs = append(errs, fmt.Sprintf("Version %s: %v", fr.ref, fr.err))
			continue
		}
		updated, err := admission.Admit(ctx, r.db, r.cache, packageName, fr.ref, fr.info, fr.commit.Date, fr.commit.SHA)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Version %s: %v", fr.ref, err))
			continue
		}
		if updated {
			r.logger.Info("reconciler: added release", "package", packageName, "version", fr.ref)
		}
	}

	for _, fr := range r.admitBranches(ctx, repo, branches) {
		branchRef := versionref.BranchKey(fr.ref)
		existing[branchRef] = true
		if fr.err != nil {
			errs = append(errs, fmt.Sprintf("Branch %s: %v", branchRef, fr.err))
			continue
		}
		updated, err := admission.Admit(ctx, r.db, r.cache, packageName, branchRef, fr.info, fr.commit.Date, fr.commit.SHA)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Branch %s: %v", branchRef, err))
			continue
		}
		if updated {
			r.logger.Info("reconciler: added branch", "package", packageName, "branch", fr.ref)
		}
	}

	if !gotAll {
		errs = append(errs, "Failed to get GIT tags/branches: partial result")
	} else {
		r.prune(ctx, packageName, pkg, existing)
	}

	if err := r.db.SetPackageErrors(ctx, packageName, errs); err != nil {
		r.logger.Warn("reconciler: could not persist errors", "package", packageName, "err", err)
	}

	return nil
}

func (r *Reconciler) abort(ctx context.Context, packageName, message string) error {
	if err := r.db.SetPackageErrors(ctx, packageName, []string{message}); err != nil {
		r.logger.Warn("reconciler: could not persist abort error", "package", packageName, "err", err)
	}
	return nil
}

// fetchRefs lists tags and branches, filtering tags to valid release tags
// sorted ascending by semver (§4.G step 3). gotAll is false if either
// listing failed, which suppresses the prune step.
func (r *Reconciler) fetchRefs(ctx context.Context, repo repository.Repository) (tags, branches []repository.RefCommit, gotAll bool) {
	gotAll = true

	rawTags, err := repo.GetTags(ctx)
	if err != nil {
		r.logger.Warn("reconciler: GetTags failed", "err", err)
		gotAll = false
	}

	refs := make([]versionref.TagRef, 0, len(rawTags))
	byTag := make(map[string]repository.RefCommit, len(rawTags))
	for _, t := range rawTags {
		if !versionref.IsTag(t.Ref) {
			continue
		}
		refs = append(refs, versionref.TagRef{Tag: t.Ref, Version: versionref.TagToVersion(t.Ref)})
		byTag[t.Ref] = t
	}
	versionref.SortTagsAscending(refs)

	tags = make([]repository.RefCommit, 0, len(refs))
	for _, tr := range refs {
		tags = append(tags, byTag[tr.Tag])
	}

	branches, err = repo.GetBranches(ctx)
	if err != nil {
		r.logger.Warn("reconciler: GetBranches failed", "err", err)
		gotAll = false
	}

	return tags, branches, gotAll
}

// admitTags fetches each tag's metadata concurrently (bounded fan-out,
// mirroring the teacher's guard-channel pattern) and returns the results
// in ascending semver order, ready for serialized admission.
func (r *Reconciler) admitTags(ctx context.Context, repo repository.Repository, tags []repository.RefCommit) []fetchedRef {
	return fetchConcurrently(ctx, repo, tags, versionref.TagToVersion)
}

// admitBranches fetches each branch's metadata concurrently; ref values
// are bare branch names (the '~' prefix is applied by the caller).
func (r *Reconciler) admitBranches(ctx context.Context, repo repository.Repository, branches []repository.RefCommit) []fetchedRef {
	return fetchConcurrently(ctx, repo, branches, func(ref string) string { return ref })
}

// fetchConcurrently fans out metadata reads bounded by runtime.NumCPU(),
// preserving input order in the result slice so callers can admit
// serially afterward.
func fetchConcurrently(ctx context.Context, repo repository.Repository, refs []repository.RefCommit, refName func(string) string) []fetchedRef {
	results := make([]fetchedRef, len(refs))
	guard := make(chan bool, runtime.NumCPU())
	done := make(chan int, len(refs))

	for i, rc := range refs {
		go func(i int, rc repository.RefCommit) {
			guard <- true
			defer func() { <-guard }()

			var buf bytes.Buffer
			err := repo.ReadFile(ctx, rc.Commit.SHA, repository.MetadataPath, &buf)

			var info interface{}
			if err == nil {
				err = json.Unmarshal(buf.Bytes(), &info)
			}

			results[i] = fetchedRef{
				ref:    refName(rc.Ref),
				commit: rc.Commit,
				info:   info,
				err:    err,
			}
			done <- i
		}(i, rc)
	}

	for range refs {
		<-done
	}

	return results
}

// prune removes refs present in the previously loaded snapshot but not
// re-confirmed by this run (§4.G step 6), only called when gotAll.
func (r *Reconciler) prune(ctx context.Context, packageName string, snapshot *catalog.Package, existing map[string]bool) {
	for version := range snapshot.Versions {
		if existing[version] {
			continue
		}
		if err := store.RemoveRef(ctx, r.db, packageName, version); err != nil {
			r.logger.Warn("reconciler: failed to prune version", "package", packageName, "version", version, "err", err)
			continue
		}
		r.cache.Invalidate(packageName)
		r.logger.Info("reconciler: removed version", "package", packageName, "version", version)
	}

	for branch := range snapshot.Branches {
		ref := versionref.BranchKey(branch)
		if existing[ref] {
			continue
		}
		if err := store.RemoveRef(ctx, r.db, packageName, ref); err != nil {
			r.logger.Warn("reconciler: failed to prune branch", "package", packageName, "branch", branch, "err", err)
			continue
		}
		r.cache.Invalidate(packageName)
		r.logger.Info("reconciler: removed branch", "package", packageName, "branch", branch)
	}
}
