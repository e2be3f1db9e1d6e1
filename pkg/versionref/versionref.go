// Package versionref implements the Version Classifier (§4.B): it tells
// branch refs from semver release refs apart and provides the total
// order over releases the Reconciler sorts tags with.
package versionref

import (
	"sort"
	"strings"

	"github.com/blang/semver/v4"

	"github.com/dalee/vcsreg/pkg/regerr"
)

// BranchPrefix marks a ref string as a branch.
const BranchPrefix = "~"

// Kind distinguishes a release ref from a branch ref.
type Kind int

const (
	KindRelease Kind = iota
	KindBranch
)

// Classify implements §4.B / I3: a ref beginning with exactly one '~' is
// a branch; '~~...' is malformed and rejected; anything else must parse
// as semver to be a release.
func Classify(ref string) (Kind, error) {
	if strings.HasPrefix(ref, BranchPrefix) {
		if strings.HasPrefix(ref, BranchPrefix+BranchPrefix) {
			return 0, regerr.New(regerr.InvalidRef, "ref %q is malformed: reserved ~~ prefix", ref)
		}
		if len(ref) == len(BranchPrefix) {
			return 0, regerr.New(regerr.InvalidRef, "ref %q has empty branch name", ref)
		}
		return KindBranch, nil
	}

	if _, err := semver.Parse(ref); err != nil {
		return 0, regerr.Wrap(regerr.InvalidRef, err, "ref %q is not a valid semver release", ref)
	}

	return KindRelease, nil
}

// BranchName strips the leading '~' from a branch ref/key. Caller must
// have already classified ref as KindBranch.
func BranchName(ref string) string {
	return strings.TrimPrefix(ref, BranchPrefix)
}

// BranchKey builds the '~'-prefixed branch ref for a bare branch name.
// The stores key a Package's branches map by the bare name, without the
// prefix.
func BranchKey(name string) string {
	return BranchPrefix + name
}

// IsTag reports whether a raw VCS tag name (e.g. "v1.2.3") names a
// release: it must start with 'v' and the remainder must be valid
// semver (§4.G step 3).
func IsTag(tag string) bool {
	if !strings.HasPrefix(tag, "v") {
		return false
	}
	_, err := semver.Parse(strings.TrimPrefix(tag, "v"))
	return err == nil
}

// TagToVersion strips the tag's leading 'v', yielding the stored version
// string.
func TagToVersion(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// VersionToTag restores the 'v' prefix the Repository capability expects
// for ref-based operations (e.g. GetDownloadURL on a release).
func VersionToTag(version string) string {
	return "v" + version
}

// Parse parses a release version string into its comparable semver form.
func Parse(version string) (semver.Version, error) {
	v, err := semver.Parse(version)
	if err != nil {
		return semver.Version{}, regerr.Wrap(regerr.InvalidRef, err, "invalid semver %q", version)
	}
	return v, nil
}

// Compare implements compareVersions(a, b): -1, 0, 1 ascending order.
func Compare(a, b string) (int, error) {
	va, err := Parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// TagRef pairs a raw VCS tag name with the version it carries, used by
// SortTagsAscending.
type TagRef struct {
	Tag     string
	Version string
}

// SortTagsAscending sorts tags (already filtered to valid release tags
// via IsTag) by semver ascending, per §4.G step 3.
func SortTagsAscending(tags []TagRef) {
	sort.SliceStable(tags, func(i, j int) bool {
		vi, erri := Parse(tags[i].Version)
		vj, errj := Parse(tags[j].Version)
		if erri != nil || errj != nil {
			return tags[i].Version < tags[j].Version
		}
		return vi.Compare(vj) < 0
	})
}
