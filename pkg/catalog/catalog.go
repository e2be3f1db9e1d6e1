// Package catalog holds the registry's persisted data model (§3): the
// Package record, its versions/branches, and the read-optimized views
// derived from them.
package catalog

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dalee/vcsreg/pkg/jsonmap"
)

// Descriptor is the opaque repository descriptor a Package carries and a
// Repository resolver consumes (§3 "repository"). Host identifies which
// adapter resolves it (e.g. "gitlab"); Endpoint/Path are adapter-specific.
type Descriptor struct {
	Host     string `bson:"host" json:"host"`
	Endpoint string `bson:"endpoint" json:"endpoint"`
	Path     string `bson:"path" json:"path"`
	Token    string `bson:"token,omitempty" json:"-"`
}

// PackageVersion is a member of a Package's versions or branches map
// (§3 "PackageVersion").
type PackageVersion struct {
	// Version is the stored ref: a semver string for releases, or
	// "~"+branch-name for branches (I3).
	Version string      `bson:"version" json:"version"`
	Date    time.Time   `bson:"date" json:"date"`
	Info    jsonmap.Map `bson:"info" json:"info"`
	SHA     string      `bson:"sha,omitempty" json:"sha,omitempty"`
}

// Package is the catalog unit (§3 "Package").
type Package struct {
	ID         primitive.ObjectID        `bson:"_id,omitempty" json:"-"`
	Name       string                    `bson:"name" json:"name"`
	Owner      string                    `bson:"owner" json:"owner"`
	Repository Descriptor                `bson:"repository" json:"repository"`
	Categories []string                  `bson:"categories" json:"categories"`
	Versions   map[string]PackageVersion `bson:"versions" json:"versions"`
	Branches   map[string]PackageVersion `bson:"branches" json:"branches"`
	Errors     []string                  `bson:"errors" json:"errors"`
}

// DateAdded derives the creation timestamp from the document's _id, per
// §6 "`_id` carries an embedded creation timestamp used for dateAdded."
func (p *Package) DateAdded() time.Time {
	if p.ID.IsZero() {
		return time.Time{}
	}
	return p.ID.Timestamp()
}

// Summary is the lightweight projection returned by listing operations
// (GetPackages, SearchPackages) that don't need the full version set.
type Summary struct {
	Name       string    `json:"name"`
	Owner      string    `json:"owner"`
	Categories []string  `json:"categories"`
	DateAdded  time.Time `json:"dateAdded"`
}

// NewPackage constructs a Package ready for first persistence; the
// document store assigns ID (and therefore DateAdded) on insert.
func NewPackage(name, owner string, repo Descriptor) *Package {
	return &Package{
		Name:       name,
		Owner:      owner,
		Repository: repo,
		Categories: []string{},
		Versions:   make(map[string]PackageVersion),
		Branches:   make(map[string]PackageVersion),
		Errors:     []string{},
	}
}
