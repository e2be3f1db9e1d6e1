// Package memstore is an in-memory DbController used by other packages'
// tests so they don't need a live MongoDB to exercise admission,
// reconciliation and the registry facade. It is test-only scaffolding,
// not a second production backend.
package memstore

import (
	"context"
	"io"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Store is a mutex-guarded map of packages keyed by name.
type Store struct {
	mu       sync.Mutex
	packages map[string]*catalog.Package
}

var _ store.DbController = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{packages: make(map[string]*catalog.Package)}
}

func (s *Store) AddPackage(ctx context.Context, pkg *catalog.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.packages[pkg.Name]; exists {
		return regerr.New(regerr.DbConflict, "package %q already exists", pkg.Name)
	}

	if pkg.ID.IsZero() {
		pkg.ID = primitive.NewObjectID()
	}

	clone := clonePackage(pkg)
	s.packages[pkg.Name] = clone
	return nil
}

func (s *Store) RemovePackage(ctx context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.packages[name]
	if !ok || pkg.Owner != owner {
		return regerr.New(regerr.NotFound, "package %q not owned by %q", name, owner)
	}
	delete(s.packages, name)
	return nil
}

func (s *Store) GetPackage(ctx context.Context, name string) (*catalog.Package, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pkg, ok := s.packages[name]
	if !ok {
		return nil, regerr.New(regerr.NotFound, "package %q", name)
	}
	return clonePackage(pkg), nil
}

func (s *Store) GetAllPackageNames(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.packages))
	for name := range s.packages {
		names = append(names, name)
	}
	return names, nil
}

func (s *Store) GetUserPackages(ctx context.Context, owner string) ([]catalog.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Summary, 0)
	for _, pkg := range s.packages {
		if pkg.Owner == owner {
			out = append(out, summaryOf(pkg))
		}
	}
	return out, nil
}

func (s *Store) SearchPackages(ctx context.Context, keywords []string) ([]catalog.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]catalog.Summary, 0)
	for _, pkg := range s.packages {
		for _, kw := range keywords {
			if strings.Contains(pkg.Name, kw) {
				out = append(out, summaryOf(pkg))
				break
			}
		}
	}
	return out, nil
}

func (s *Store) HasVersion(ctx context.Context, name, version string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return false, regerr.New(regerr.NotFound, "package %q", name)
	}
	_, has := pkg.Versions[version]
	return has, nil
}

func (s *Store) AddVersion(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setVersion(name, v)
}

func (s *Store) UpdateVersion(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setVersion(name, v)
}

func (s *Store) RemoveVersion(ctx context.Context, name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	delete(pkg.Versions, version)
	return nil
}

func (s *Store) setVersion(name string, v catalog.PackageVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	pkg.Versions[v.Version] = v
	return nil
}

func (s *Store) HasBranch(ctx context.Context, name, branch string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return false, regerr.New(regerr.NotFound, "package %q", name)
	}
	_, has := pkg.Branches[branch]
	return has, nil
}

func (s *Store) AddBranch(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setBranch(name, v)
}

func (s *Store) UpdateBranch(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setBranch(name, v)
}

func (s *Store) setBranch(name string, v catalog.PackageVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	pkg.Branches[versionref.BranchName(v.Version)] = v
	return nil
}

func (s *Store) RemoveBranch(ctx context.Context, name, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	delete(pkg.Branches, branch)
	return nil
}

func (s *Store) SetPackageCategories(ctx context.Context, name string, categories []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	pkg.Categories = categories
	return nil
}

func (s *Store) SetPackageErrors(ctx context.Context, name string, errs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pkg, ok := s.packages[name]
	if !ok {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	pkg.Errors = errs
	return nil
}

func clonePackage(pkg *catalog.Package) *catalog.Package {
	clone := *pkg
	clone.Versions = make(map[string]catalog.PackageVersion, len(pkg.Versions))
	for k, v := range pkg.Versions {
		clone.Versions[k] = v
	}
	clone.Branches = make(map[string]catalog.PackageVersion, len(pkg.Branches))
	for k, v := range pkg.Branches {
		clone.Branches[k] = v
	}
	clone.Categories = append([]string(nil), pkg.Categories...)
	clone.Errors = append([]string(nil), pkg.Errors...)
	return &clone
}

func summaryOf(pkg *catalog.Package) catalog.Summary {
	return catalog.Summary{
		Name:       pkg.Name,
		Owner:      pkg.Owner,
		Categories: pkg.Categories,
		DateAdded:  pkg.DateAdded(),
	}
}

// StubResolver resolves every descriptor to a StubRepository that lists
// no refs and builds deterministic download URLs, for use by tests that
// don't exercise the Repository capability directly.
type StubResolver struct{}

// NewStubResolver returns a resolver producing StubRepository values.
func NewStubResolver() *StubResolver {
	return &StubResolver{}
}

func (r *StubResolver) Resolve(ctx context.Context, descriptor catalog.Descriptor) (repository.Repository, error) {
	return &StubRepository{}, nil
}

// StubRepository is a minimal repository.Repository for tests that only
// need GetDownloadURL to succeed deterministically.
type StubRepository struct {
	Tags     []repository.RefCommit
	Branches []repository.RefCommit
	Files    map[string][]byte
}

func (r *StubRepository) GetTags(ctx context.Context) ([]repository.RefCommit, error) {
	return r.Tags, nil
}

func (r *StubRepository) GetBranches(ctx context.Context) ([]repository.RefCommit, error) {
	return r.Branches, nil
}

func (r *StubRepository) ReadFile(ctx context.Context, sha, path string, sink io.Writer) error {
	content, ok := r.Files[sha+":"+path]
	if !ok {
		return regerr.New(regerr.RepositoryError, "no file %s@%s", path, sha)
	}
	_, err := sink.Write(content)
	return err
}

func (r *StubRepository) GetDownloadURL(ref string) (string, error) {
	return "https://example.invalid/download/" + ref, nil
}
