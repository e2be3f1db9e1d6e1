// Package metadata implements the Metadata Validator (§4.E): the checks
// applied to a package description fetched from a repository before it
// is admitted as a PackageVersion.
package metadata

import (
	"strings"

	"github.com/dalee/vcsreg/pkg/jsonmap"
	"github.com/dalee/vcsreg/pkg/namevalidate"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// Validate checks a freshly-decoded package description against §4.E.
//
// raw is the result of json.Unmarshal against an interface{}. ref is the
// stored ref being admitted (a version string for a release, or a plain
// branch name for a branch — without the '~' prefix). kind tells the
// validator which ref-specific rule (step 5) applies. existingName is the
// package's current stored name; pass "" when there is none yet (first
// admission), in which case the normalized info name is accepted as-is
// and returned to the caller.
//
// Validate returns the normalized info (lowercased name) on success.
func Validate(raw interface{}, ref string, kind versionref.Kind, existingName string) (jsonmap.Map, error) {
	info, ok := asMap(raw)
	if !ok {
		return nil, regerr.New(regerr.MalformedDescription, "description is not a JSON object")
	}

	license := info.GetStringDefault("license", "")
	description := info.GetStringDefault("description", "")
	if license == "" {
		return nil, regerr.New(regerr.MissingRequiredField, "missing required field %q", "license")
	}
	if description == "" {
		return nil, regerr.New(regerr.MissingRequiredField, "missing required field %q", "description")
	}

	rawName, err := info.GetString("name")
	if err != nil {
		return nil, regerr.Wrap(regerr.MissingRequiredField, err, "missing required field %q", "name")
	}
	name := strings.ToLower(rawName)
	if err := namevalidate.Validate(name); err != nil {
		return nil, err
	}
	if existingName != "" && name != strings.ToLower(existingName) {
		return nil, regerr.New(regerr.InvalidName, "description name %q does not match package %q", name, existingName)
	}
	info["name"] = name

	if deps, err := info.GetMap("dependencies"); err == nil {
		for key := range deps {
			if err := namevalidate.ValidateDependencyKey(key); err != nil {
				return nil, err
			}
		}
	}

	if kind == versionref.KindRelease && info.Has("version") {
		declared, err := info.GetString("version")
		if err != nil {
			return nil, regerr.Wrap(regerr.VersionMismatch, err, "version field is not a string")
		}
		if declared != ref {
			return nil, regerr.New(regerr.VersionMismatch, "description version %q does not match tag version %q", declared, ref)
		}
	}

	return info, nil
}

func asMap(raw interface{}) (jsonmap.Map, bool) {
	switch v := raw.(type) {
	case jsonmap.Map:
		return v, true
	case map[string]interface{}:
		return jsonmap.Map(v), true
	default:
		return nil, false
	}
}
