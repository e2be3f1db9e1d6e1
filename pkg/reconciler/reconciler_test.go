package reconciler

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalee/vcsreg/pkg/cache"
	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/repository"
	"github.com/dalee/vcsreg/pkg/store/memstore"
)

type fakeRepo struct {
	tags      []repository.RefCommit
	branches  []repository.RefCommit
	files     map[string]string // sha -> json content
	tagsErr   error
	branchErr error
}

func (f *fakeRepo) GetTags(ctx context.Context) ([]repository.RefCommit, error) {
	return f.tags, f.tagsErr
}

func (f *fakeRepo) GetBranches(ctx context.Context) ([]repository.RefCommit, error) {
	return f.branches, f.branchErr
}

func (f *fakeRepo) ReadFile(ctx context.Context, sha, path string, sink io.Writer) error {
	content, ok := f.files[sha]
	if !ok {
		return assert.AnError
	}
	_, err := sink.Write([]byte(content))
	return err
}

func (f *fakeRepo) GetDownloadURL(ref string) (string, error) {
	return "https://example.invalid/" + ref, nil
}

type fakeResolver struct {
	repo repository.Repository
}

func (r *fakeResolver) Resolve(ctx context.Context, descriptor catalog.Descriptor) (repository.Repository, error) {
	return r.repo, nil
}

func newTestLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func setup(t *testing.T, repo *fakeRepo) (*memstore.Store, *Reconciler) {
	t.Helper()
	db := memstore.New()
	c := cache.New(db, &fakeResolver{repo: repo})
	r := New(db, &fakeResolver{repo: repo}, c, newTestLogger())

	pkg := catalog.NewPackage("foo", "owner", catalog.Descriptor{Host: "gitlab", Path: "g/foo"})
	require.NoError(t, db.AddPackage(context.Background(), pkg))

	return db, r
}

func TestRun_AddsTagAndBranch(t *testing.T) {
	repo := &fakeRepo{
		tags: []repository.RefCommit{
			{Ref: "v0.1.0", Commit: repository.CommitInfo{SHA: "c1", Date: time.Now()}},
		},
		branches: []repository.RefCommit{
			{Ref: "master", Commit: repository.CommitInfo{SHA: "c2", Date: time.Now()}},
		},
		files: map[string]string{
			"c1": `{"name":"foo","license":"MIT","description":"x","version":"0.1.0"}`,
			"c2": `{"name":"foo","license":"MIT","description":"x"}`,
		},
	}
	db, r := setup(t, repo)

	require.NoError(t, r.Run(context.Background(), "foo"))

	pkg, err := db.GetPackage(context.Background(), "foo")
	require.NoError(t, err)
	assert.Contains(t, pkg.Versions, "0.1.0")
	assert.Contains(t, pkg.Branches, "master")
	assert.Empty(t, pkg.Errors)
}

func TestRun_BadTagIsolated(t *testing.T) {
	repo := &fakeRepo{
		tags: []repository.RefCommit{
			{Ref: "v0.1.0", Commit: repository.CommitInfo{SHA: "c1", Date: time.Now()}},
			{Ref: "v0.2.0", Commit: repository.CommitInfo{SHA: "c2", Date: time.Now()}},
		},
		files: map[string]string{
			"c1": `{"name":"foo","license":"MIT","description":"x"}`,
			"c2": `{"name":"foo","description":"x"}`,
		},
	}
	db, r := setup(t, repo)

	require.NoError(t, r.Run(context.Background(), "foo"))

	pkg, err := db.GetPackage(context.Background(), "foo")
	require.NoError(t, err)
	assert.Contains(t, pkg.Versions, "0.1.0")
	assert.NotContains(t, pkg.Versions, "0.2.0")
	require.Len(t, pkg.Errors, 1)
	assert.Contains(t, pkg.Errors[0], "0.2.0")
}

func TestRun_PrunesVanishedBranch(t *testing.T) {
	repo := &fakeRepo{
		tags: []repository.RefCommit{
			{Ref: "v0.1.0", Commit: repository.CommitInfo{SHA: "c1", Date: time.Now()}},
		},
		branches: []repository.RefCommit{
			{Ref: "master", Commit: repository.CommitInfo{SHA: "c2", Date: time.Now()}},
		},
		files: map[string]string{
			"c1": `{"name":"foo","license":"MIT","description":"x"}`,
			"c2": `{"name":"foo","license":"MIT","description":"x"}`,
		},
	}
	db, r := setup(t, repo)
	require.NoError(t, r.Run(context.Background(), "foo"))

	repo.branches = nil

	require.NoError(t, r.Run(context.Background(), "foo"))

	pkg, err := db.GetPackage(context.Background(), "foo")
	require.NoError(t, err)
	assert.Contains(t, pkg.Versions, "0.1.0")
	assert.NotContains(t, pkg.Branches, "master")
}

func TestRun_TagsFetchFailureSkipsPrune(t *testing.T) {
	repo := &fakeRepo{
		tags: []repository.RefCommit{
			{Ref: "v0.1.0", Commit: repository.CommitInfo{SHA: "c1", Date: time.Now()}},
		},
		files: map[string]string{
			"c1": `{"name":"foo","license":"MIT","description":"x"}`,
		},
	}
	db, r := setup(t, repo)
	require.NoError(t, r.Run(context.Background(), "foo"))

	repo.tagsErr = assert.AnError

	require.NoError(t, r.Run(context.Background(), "foo"))

	pkg, err := db.GetPackage(context.Background(), "foo")
	require.NoError(t, err)
	assert.Contains(t, pkg.Versions, "0.1.0")
	require.NotEmpty(t, pkg.Errors)
}
