package gitlab

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/repository"
)

// projectListCacheTTL mirrors the teacher's "cache project list for a
// relatively small amount of time (5-10 min)" policy (client.go), widened
// slightly since this adapter is now shared across reconciler runs rather
// than per-HTTP-request.
const projectListCacheTTL = 10 * time.Minute

// fileCacheSize bounds the per-adapter blob cache. Every Resolve builds a
// new Adapter, so the cache only serves repeated reads through one
// Adapter, such as a tag and a branch that share a commit.
const fileCacheSize = 128

// Adapter implements repository.Repository against one GitLab project,
// adapting the teacher's *Client transport onto the core's capability
// interface.
type Adapter struct {
	client    *Client
	project   *Project
	fileCache *lru.Cache
}

// NewAdapter resolves pathWithNamespace to a concrete project and
// returns a Repository bound to it.
func NewAdapter(client *Client, pathWithNamespace string) (*Adapter, error) {
	project, err := client.GetProjectByPath(pathWithNamespace)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "resolving project %q", pathWithNamespace)
	}

	fileCache, err := lru.New(fileCacheSize)
	if err != nil {
		return nil, err
	}

	return &Adapter{client: client, project: project, fileCache: fileCache}, nil
}

var _ repository.Repository = (*Adapter)(nil)

func (a *Adapter) GetTags(ctx context.Context) ([]repository.RefCommit, error) {
	tags, err := a.client.GetTagList(a.project)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "listing tags for %s", a.project.PathWithNamespace)
	}

	out := make([]repository.RefCommit, 0, len(tags))
	for _, t := range tags {
		out = append(out, repository.RefCommit{
			Ref: t.Name,
			Commit: repository.CommitInfo{
				SHA:  t.Commit.ID,
				Date: parseCommitDate(t.Commit.CommittedDate),
			},
		})
	}
	return out, nil
}

func (a *Adapter) GetBranches(ctx context.Context) ([]repository.RefCommit, error) {
	branches, err := a.client.GetBranchList(a.project)
	if err != nil {
		return nil, regerr.Wrap(regerr.RepositoryError, err, "listing branches for %s", a.project.PathWithNamespace)
	}

	out := make([]repository.RefCommit, 0, len(branches))
	for _, b := range branches {
		out = append(out, repository.RefCommit{
			Ref: b.Name,
			Commit: repository.CommitInfo{
				SHA:  b.Commit.ID,
				Date: parseCommitDate(b.Commit.CommittedDate),
			},
		})
	}
	return out, nil
}

func (a *Adapter) ReadFile(ctx context.Context, sha, path string, sink io.Writer) error {
	cacheKey := sha + ":" + path

	if cached, ok := a.fileCache.Get(cacheKey); ok {
		_, err := sink.Write(cached.([]byte))
		return err
	}

	content, err := a.client.GetFile(a.project, path, sha)
	if err != nil {
		return regerr.Wrap(regerr.RepositoryError, err, "reading %s@%s for %s", path, sha, a.project.PathWithNamespace)
	}

	a.fileCache.Add(cacheKey, content)

	_, err = sink.Write(content)
	return err
}

func (a *Adapter) GetDownloadURL(ref string) (string, error) {
	return fmt.Sprintf(
		"%s/%s/repository/archive.tar.gz?ref=%s",
		a.client.Endpoint,
		fmt.Sprintf("api-proxy/projects/%d", a.project.ID),
		url.QueryEscape(ref),
	), nil
}

func parseCommitDate(raw string) time.Time {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Resolver resolves catalog.Descriptor values with Host == "gitlab" into
// Adapter instances. It caches the API-version-negotiated Client per
// endpoint+token for projectListCacheTTL, so a sweep across many packages
// on the same host doesn't repeat the version probe. Project lists are
// not cached: each Resolve looks up its project by path.
type Resolver struct {
	projectListCache *lru.Cache
}

// NewResolver constructs a gitlab Resolver with a bounded client cache
// (teacher used an unbounded package-global LRU; here it's scoped to the
// resolver instance so tests don't leak state across runs).
func NewResolver() (*Resolver, error) {
	cache, err := lru.New(256)
	if err != nil {
		return nil, err
	}
	return &Resolver{projectListCache: cache}, nil
}

type cachedEntry struct {
	client  *Client
	expires time.Time
}

// Resolve implements repository.Resolver.
func (r *Resolver) Resolve(ctx context.Context, descriptor catalog.Descriptor) (repository.Repository, error) {
	if descriptor.Host != "gitlab" {
		return nil, regerr.New(regerr.RepositoryError, "gitlab resolver cannot handle host %q", descriptor.Host)
	}

	cacheKey := descriptor.Endpoint + "|" + descriptor.Token
	var client *Client

	if item, ok := r.projectListCache.Get(cacheKey); ok {
		entry := item.(cachedEntry)
		if time.Now().Before(entry.expires) {
			client = entry.client
		}
	}

	if client == nil {
		var err error
		client, err = NewClient(descriptor.Endpoint, descriptor.Token)
		if err != nil {
			return nil, regerr.Wrap(regerr.RepositoryError, err, "connecting to %s", descriptor.Endpoint)
		}
		r.projectListCache.Add(cacheKey, cachedEntry{client: client, expires: time.Now().Add(projectListCacheTTL)})
	}

	return NewAdapter(client, descriptor.Path)
}
