// Package repository defines the Repository Capability (§4.C): the
// abstract remote-VCS surface the core consumes. Concrete adapters (for
// example pkg/repository/gitlab) implement this against a specific host.
package repository

import (
	"context"
	"io"
	"time"

	"github.com/dalee/vcsreg/pkg/catalog"
)

// CommitInfo carries the minimum a caller needs about a tag/branch tip.
type CommitInfo struct {
	SHA  string
	Date time.Time
}

// RefCommit pairs a ref name (a raw tag name or a branch name) with the
// commit it currently points at.
type RefCommit struct {
	Ref    string
	Commit CommitInfo
}

// Repository is the capability the Reconciler drives. Implementations
// must surface failures wrapped as regerr.RepositoryError so the
// Reconciler can catch them at its boundary (§4.C "errors propagate as
// RepositoryError").
type Repository interface {
	// GetTags lists every tag in the repository, unfiltered.
	GetTags(ctx context.Context) ([]RefCommit, error)

	// GetBranches lists every branch in the repository.
	GetBranches(ctx context.Context) ([]RefCommit, error)

	// ReadFile streams the bytes of path as it existed at sha into sink.
	ReadFile(ctx context.Context, sha, path string, sink io.Writer) error

	// GetDownloadURL builds the URL the Info Cache injects into a
	// version's view (§4.I); ref is "v"+version for releases, or the
	// bare branch name for branches.
	GetDownloadURL(ref string) (string, error)
}

// Resolver constructs a Repository for a Package's stored descriptor.
// This is the indirection AddPackage and the Reconciler use so neither
// has to know which VCS host a given package lives on.
type Resolver interface {
	Resolve(ctx context.Context, descriptor catalog.Descriptor) (Repository, error)
}

// MetadataPath is the file the core reads as package.json-equivalent at
// a given commit (§6 "Consumed — Repository capability").
const MetadataPath = "/package.json"
