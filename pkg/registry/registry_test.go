package registry

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/queue"
	"github.com/dalee/vcsreg/pkg/reconciler"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store/memstore"
)

type stubRepo struct {
	branches []repository.RefCommit
	files    map[string]string
}

func (s *stubRepo) GetTags(ctx context.Context) ([]repository.RefCommit, error) { return nil, nil }
func (s *stubRepo) GetBranches(ctx context.Context) ([]repository.RefCommit, error) {
	return s.branches, nil
}
func (s *stubRepo) ReadFile(ctx context.Context, sha, path string, sink io.Writer) error {
	content, ok := s.files[sha]
	if !ok {
		return assert.AnError
	}
	_, err := sink.Write([]byte(content))
	return err
}
func (s *stubRepo) GetDownloadURL(ref string) (string, error) { return "https://x/" + ref, nil }

type stubResolver struct {
	repo repository.Repository
}

func (r *stubResolver) Resolve(ctx context.Context, descriptor catalog.Descriptor) (repository.Repository, error) {
	return r.repo, nil
}

func newTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func newRegistry(repo *stubRepo) (*Registry, *memstore.Store) {
	db := memstore.New()
	resolver := &stubResolver{repo: repo}
	c := cache.New(db, resolver)
	rec := reconciler.New(db, resolver, c, newTestLogger())
	q := queue.New(db, rec, newTestLogger())
	return New(db, resolver, c, q, newTestLogger()), db
}

func TestAddPackage_PrefersMasterBranch(t *testing.T) {
	repo := &stubRepo{
		branches: []repository.RefCommit{
			{Ref: "feature", Commit: repository.CommitInfo{SHA: "c-feature"}},
			{Ref: "master", Commit: repository.CommitInfo{SHA: "c-master"}},
		},
		files: map[string]string{
			"c-feature": `{"name":"bar","license":"MIT","description":"feature branch"}`,
			"c-master":  `{"name":"foo","license":"MIT","description":"master branch"}`,
		},
	}
	reg, db := newRegistry(repo)

	pkg, err := reg.AddPackage(context.Background(), catalog.Descriptor{Host: "gitlab", Path: "g/foo"}, "owner")
	require.NoError(t, err)
	assert.Equal(t, "foo", pkg.Name)

	stored, err := db.GetPackage(context.Background(), "foo")
	require.NoError(t, err)
	assert.Equal(t, "owner", stored.Owner)
}

func TestAddPackage_SkipsBadBranchDescription(t *testing.T) {
	repo := &stubRepo{
		branches: []repository.RefCommit{
			{Ref: "broken", Commit: repository.CommitInfo{SHA: "c-broken"}},
			{Ref: "good", Commit: repository.CommitInfo{SHA: "c-good"}},
		},
		files: map[string]string{
			"c-broken": `not json`,
			"c-good":   `{"name":"foo","license":"MIT","description":"ok"}`,
		},
	}
	reg, _ := newRegistry(repo)

	pkg, err := reg.AddPackage(context.Background(), catalog.Descriptor{Host: "gitlab", Path: "g/foo"}, "owner")
	require.NoError(t, err)
	assert.Equal(t, "foo", pkg.Name)
}

func TestAddPackage_NoUsableBranch(t *testing.T) {
	repo := &stubRepo{
		branches: []repository.RefCommit{
			{Ref: "broken", Commit: repository.CommitInfo{SHA: "c-broken"}},
		},
		files: map[string]string{
			"c-broken": `not json`,
		},
	}
	reg, _ := newRegistry(repo)

	_, err := reg.AddPackage(context.Background(), catalog.Descriptor{Host: "gitlab", Path: "g/foo"}, "owner")
	require.Error(t, err)
	rerr, ok := err.(*regerr.Error)
	require.True(t, ok)
	assert.Equal(t, regerr.NoUsablePackageDescription, rerr.Kind)
}

func TestGetPackageInfo_MissingReturnsNilNil(t *testing.T) {
	reg, _ := newRegistry(&stubRepo{})

	view, err := reg.GetPackageInfo(context.Background(), "nope", false)
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestRemovePackage_EvictsCache(t *testing.T) {
	repo := &stubRepo{
		branches: []repository.RefCommit{
			{Ref: "master", Commit: repository.CommitInfo{SHA: "c-master"}},
		},
		files: map[string]string{
			"c-master": `{"name":"foo","license":"MIT","description":"ok"}`,
		},
	}
	reg, _ := newRegistry(repo)

	_, err := reg.AddPackage(context.Background(), catalog.Descriptor{Host: "gitlab", Path: "g/foo"}, "owner")
	require.NoError(t, err)

	_, err = reg.GetPackageInfo(context.Background(), "foo", false)
	require.NoError(t, err)

	require.NoError(t, reg.RemovePackage(context.Background(), "foo", "owner"))

	view, err := reg.GetPackageInfo(context.Background(), "foo", false)
	require.NoError(t, err)
	assert.Nil(t, view)
}
