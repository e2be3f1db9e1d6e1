package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/versionref"
)

func TestValidate_OK(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "Foo",
		"license":     "MIT",
		"description": "a package",
		"dependencies": map[string]interface{}{
			"vendor:foo": "^1.0",
		},
	}

	info, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	require.NoError(t, err)
	assert.Equal(t, "foo", info["name"])
}

func TestValidate_NotAnObject(t *testing.T) {
	_, err := Validate("not-a-map", "0.1.0", versionref.KindRelease, "")
	requireKind(t, err, regerr.MalformedDescription)
}

func TestValidate_MissingLicense(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "foo",
		"description": "a package",
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	requireKind(t, err, regerr.MissingRequiredField)
}

func TestValidate_MissingDescription(t *testing.T) {
	raw := map[string]interface{}{
		"name":    "foo",
		"license": "MIT",
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	requireKind(t, err, regerr.MissingRequiredField)
}

func TestValidate_NameMismatch(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "bar",
		"license":     "MIT",
		"description": "a package",
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "foo")
	requireKind(t, err, regerr.InvalidName)
}

func TestValidate_BadDependencyKey(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "foo",
		"license":     "MIT",
		"description": "a package",
		"dependencies": map[string]interface{}{
			"bad key!": "^1.0",
		},
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	requireKind(t, err, regerr.InvalidName)
}

func TestValidate_VersionMismatch(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "foo",
		"license":     "MIT",
		"description": "a package",
		"version":     "0.2.0",
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	requireKind(t, err, regerr.VersionMismatch)
}

func TestValidate_VersionMatchOK(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "foo",
		"license":     "MIT",
		"description": "a package",
		"version":     "0.1.0",
	}
	_, err := Validate(raw, "0.1.0", versionref.KindRelease, "")
	assert.NoError(t, err)
}

func TestValidate_VersionFieldIgnoredOnBranch(t *testing.T) {
	raw := map[string]interface{}{
		"name":        "foo",
		"license":     "MIT",
		"description": "a package",
		"version":     "whatever-not-semver",
	}
	_, err := Validate(raw, "master", versionref.KindBranch, "")
	assert.NoError(t, err)
}

func requireKind(t *testing.T, err error, kind regerr.Kind) {
	t.Helper()
	require.Error(t, err)
	rerr, ok := err.(*regerr.Error)
	if !ok {
		require.ErrorAs(t, err, &rerr)
	}
	assert.Equal(t, kind, rerr.Kind)
}
