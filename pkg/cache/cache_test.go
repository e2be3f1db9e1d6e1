package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/jsonmap"
	"github.com/dalee/vcsreg/pkg/store/memstore"
)

func TestGetPackageInfo_MissPopulatesCache(t *testing.T) {
	db := memstore.New()
	c := New(db, memstore.NewStubResolver())

	pkg := catalog.NewPackage("foo", "owner", catalog.Descriptor{Host: "gitlab", Path: "g/foo"})
	pkg.Versions["0.1.0"] = catalog.PackageVersion{
		Version: "0.1.0",
		Info:    jsonmap.Map{"name": "foo", "license": "MIT", "description": "x"},
	}
	require.NoError(t, db.AddPackage(context.Background(), pkg))

	view, err := c.GetPackageInfo(context.Background(), "foo", false)
	require.NoError(t, err)
	assert.Equal(t, "foo", view["name"])
	_, hasErrors := view["errors"]
	assert.False(t, hasErrors)

	versions := view["versions"].([]jsonmap.Map)
	require.Len(t, versions, 1)
	assert.Equal(t, "0.1.0", versions[0]["version"])
	assert.NotEmpty(t, versions[0]["downloadUrl"])

	c.mu.RLock()
	_, cached := c.views["foo"]
	c.mu.RUnlock()
	assert.True(t, cached)
}

func TestGetPackageInfo_WithErrorsBypassesCache(t *testing.T) {
	db := memstore.New()
	c := New(db, memstore.NewStubResolver())

	pkg := catalog.NewPackage("foo", "owner", catalog.Descriptor{Host: "gitlab", Path: "g/foo"})
	pkg.Errors = []string{"Version 0.2.0: missing license"}
	require.NoError(t, db.AddPackage(context.Background(), pkg))

	view, err := c.GetPackageInfo(context.Background(), "foo", true)
	require.NoError(t, err)
	errs := view["errors"].([]string)
	assert.Len(t, errs, 1)

	normal, err := c.GetPackageInfo(context.Background(), "foo", false)
	require.NoError(t, err)
	_, hasErrors := normal["errors"]
	assert.False(t, hasErrors)
}

func TestInvalidate(t *testing.T) {
	db := memstore.New()
	c := New(db, memstore.NewStubResolver())

	pkg := catalog.NewPackage("foo", "owner", catalog.Descriptor{Host: "gitlab", Path: "g/foo"})
	require.NoError(t, db.AddPackage(context.Background(), pkg))

	_, err := c.GetPackageInfo(context.Background(), "foo", false)
	require.NoError(t, err)

	c.mu.RLock()
	_, cached := c.views["foo"]
	c.mu.RUnlock()
	require.True(t, cached)

	c.Invalidate("foo")

	c.mu.RLock()
	_, cached = c.views["foo"]
	c.mu.RUnlock()
	assert.False(t, cached)
}
