// Package store defines the DbController Capability (§4.D): the
// abstract document-store surface the core persists through. Concrete
// implementations (pkg/store/mongo) translate these calls into a real
// document database.
package store

import (
	"context"

	"github.com/dalee/vcsreg/pkg/catalog"
)

// DbController is the persistence capability the Reconciler, Version
// Admission and Registry Facade drive.
type DbController interface {
	AddPackage(ctx context.Context, pkg *catalog.Package) error
	RemovePackage(ctx context.Context, name, owner string) error
	GetPackage(ctx context.Context, name string) (*catalog.Package, error)
	GetAllPackageNames(ctx context.Context) ([]string, error)
	GetUserPackages(ctx context.Context, owner string) ([]catalog.Summary, error)

	HasVersion(ctx context.Context, name, version string) (bool, error)
	AddVersion(ctx context.Context, name string, v catalog.PackageVersion) error
	UpdateVersion(ctx context.Context, name string, v catalog.PackageVersion) error
	RemoveVersion(ctx context.Context, name, version string) error

	HasBranch(ctx context.Context, name, branch string) (bool, error)
	AddBranch(ctx context.Context, name string, v catalog.PackageVersion) error
	UpdateBranch(ctx context.Context, name string, v catalog.PackageVersion) error
	RemoveBranch(ctx context.Context, name, branch string) error

	SetPackageCategories(ctx context.Context, name string, categories []string) error
	SetPackageErrors(ctx context.Context, name string, errs []string) error

	SearchPackages(ctx context.Context, keywords []string) ([]catalog.Summary, error)
}

// RemoveRef implements the Reconciler's pruning call (§4.G step 6,
// §4.D "removeVersion(name, v) ... chooses branch vs. release by
// prefix"): it dispatches to RemoveBranch or RemoveVersion based on
// whether ref carries the branch prefix, so reconciler code doesn't need
// to special-case storage layout.
func RemoveRef(ctx context.Context, db DbController, name, ref string) error {
	if isBranchRef(ref) {
		return db.RemoveBranch(ctx, name, branchName(ref))
	}
	return db.RemoveVersion(ctx, name, ref)
}

func isBranchRef(ref string) bool {
	return len(ref) > 0 && ref[0] == '~'
}

func branchName(ref string) string {
	return ref[1:]
}
