// Package mongo implements the DbController Capability (§4.D) on top of
// MongoDB. The document shape mirrors §3 directly: one document per
// Package, with versions stored as an embedded map keyed by version
// string and branches as one keyed by bare branch name (no '~'), and the
// document's own ObjectID supplying dateAdded (§6).
package mongo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dalee/vcsreg/pkg/catalog"
	"github.com/dalee/vcsreg/pkg/regerr"
	"github.com/dalee/vcsreg/pkg/store"
	"github.com/dalee/vcsreg/pkg/versionref"
)

// dotEscape substitutes for '.' in map keys used as Mongo field-path
// segments: a raw semver like "1.2.3" would otherwise be indistinguishable
// from a nested path. Translated back on every read.
const dotEscape = "．"

func encodeKey(k string) string {
	return strings.ReplaceAll(k, ".", dotEscape)
}

func decodeKey(k string) string {
	return strings.ReplaceAll(k, dotEscape, ".")
}

// decodeRefKeys undoes encodeKey on a freshly-decoded Package's
// versions/branches maps.
func decodeRefKeys(pkg *catalog.Package) {
	if pkg == nil {
		return
	}
	pkg.Versions = remapKeys(pkg.Versions)
	pkg.Branches = remapKeys(pkg.Branches)
}

func remapKeys(m map[string]catalog.PackageVersion) map[string]catalog.PackageVersion {
	if m == nil {
		return m
	}
	out := make(map[string]catalog.PackageVersion, len(m))
	for k, v := range m {
		out[decodeKey(k)] = v
	}
	return out
}

// Store is a DbController backed by a single MongoDB collection.
type Store struct {
	packages *mongo.Collection
}

var _ store.DbController = (*Store)(nil)

// New wraps an existing database handle. EnsureIndexes should be called
// once at startup.
func New(db *mongo.Database) *Store {
	return &Store{packages: db.Collection("packages")}
}

// EnsureIndexes creates the unique index on package name §3 "Identity"
// requires.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.packages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *Store) AddPackage(ctx context.Context, pkg *catalog.Package) error {
	if pkg.ID.IsZero() {
		pkg.ID = primitive.NewObjectID()
	}

	_, err := s.packages.InsertOne(ctx, pkg)
	if mongo.IsDuplicateKeyError(err) {
		return regerr.Wrap(regerr.DbConflict, err, "package %q already exists", pkg.Name)
	}
	if err != nil {
		return regerr.Wrap(regerr.DbError, err, "inserting package %q", pkg.Name)
	}
	return nil
}

func (s *Store) RemovePackage(ctx context.Context, name, owner string) error {
	res, err := s.packages.DeleteOne(ctx, bson.M{"name": name, "owner": owner})
	if err != nil {
		return regerr.Wrap(regerr.DbError, err, "removing package %q", name)
	}
	if res.DeletedCount == 0 {
		return regerr.New(regerr.NotFound, "package %q not owned by %q", name, owner)
	}
	return nil
}

func (s *Store) GetPackage(ctx context.Context, name string) (*catalog.Package, error) {
	var pkg catalog.Package
	err := s.packages.FindOne(ctx, bson.M{"name": name}).Decode(&pkg)
	if err == mongo.ErrNoDocuments {
		return nil, regerr.New(regerr.NotFound, "package %q", name)
	}
	if err != nil {
		return nil, regerr.Wrap(regerr.DbError, err, "loading package %q", name)
	}
	decodeRefKeys(&pkg)
	return &pkg, nil
}

func (s *Store) GetAllPackageNames(ctx context.Context) ([]string, error) {
	cur, err := s.packages.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"name": 1}))
	if err != nil {
		return nil, regerr.Wrap(regerr.DbError, err, "listing package names")
	}
	defer cur.Close(ctx)

	names := make([]string, 0)
	for cur.Next(ctx) {
		var doc struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, regerr.Wrap(regerr.DbError, err, "decoding package name")
		}
		names = append(names, doc.Name)
	}
	return names, cur.Err()
}

func (s *Store) GetUserPackages(ctx context.Context, owner string) ([]catalog.Summary, error) {
	cur, err := s.packages.Find(ctx, bson.M{"owner": owner})
	if err != nil {
		return nil, regerr.Wrap(regerr.DbError, err, "listing packages for %q", owner)
	}
	defer cur.Close(ctx)

	return decodeSummaries(ctx, cur)
}

func (s *Store) SearchPackages(ctx context.Context, keywords []string) ([]catalog.Summary, error) {
	if len(keywords) == 0 {
		return []catalog.Summary{}, nil
	}

	ors := make([]bson.M, 0, len(keywords)*2)
	for _, kw := range keywords {
		pattern := primitive.Regex{Pattern: regexQuoteMeta(kw), Options: "i"}
		ors = append(ors, bson.M{"name": pattern}, bson.M{"categories": pattern})
	}

	cur, err := s.packages.Find(ctx, bson.M{"$or": ors})
	if err != nil {
		return nil, regerr.Wrap(regerr.DbError, err, "searching packages")
	}
	defer cur.Close(ctx)

	return decodeSummaries(ctx, cur)
}

func decodeSummaries(ctx context.Context, cur *mongo.Cursor) ([]catalog.Summary, error) {
	out := make([]catalog.Summary, 0)
	for cur.Next(ctx) {
		var pkg catalog.Package
		if err := cur.Decode(&pkg); err != nil {
			return nil, regerr.Wrap(regerr.DbError, err, "decoding package")
		}
		out = append(out, catalog.Summary{
			Name:       pkg.Name,
			Owner:      pkg.Owner,
			Categories: pkg.Categories,
			DateAdded:  pkg.DateAdded(),
		})
	}
	return out, cur.Err()
}

func (s *Store) HasVersion(ctx context.Context, name, version string) (bool, error) {
	return s.hasField(ctx, name, "versions."+encodeKey(version))
}

func (s *Store) HasBranch(ctx context.Context, name, branch string) (bool, error) {
	return s.hasField(ctx, name, "branches."+encodeKey(branch))
}

func (s *Store) hasField(ctx context.Context, name, field string) (bool, error) {
	count, err := s.packages.CountDocuments(ctx, bson.M{"name": name, field: bson.M{"$exists": true}})
	if err != nil {
		return false, regerr.Wrap(regerr.DbError, err, "checking %s on %q", field, name)
	}
	return count > 0, nil
}

func (s *Store) AddVersion(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setField(ctx, name, "versions."+encodeKey(v.Version), v)
}

func (s *Store) UpdateVersion(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setField(ctx, name, "versions."+encodeKey(v.Version), v)
}

func (s *Store) RemoveVersion(ctx context.Context, name, version string) error {
	return s.unsetField(ctx, name, "versions."+encodeKey(version))
}

func (s *Store) AddBranch(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setField(ctx, name, "branches."+encodeKey(versionref.BranchName(v.Version)), v)
}

func (s *Store) UpdateBranch(ctx context.Context, name string, v catalog.PackageVersion) error {
	return s.setField(ctx, name, "branches."+encodeKey(versionref.BranchName(v.Version)), v)
}

func (s *Store) RemoveBranch(ctx context.Context, name, branch string) error {
	return s.unsetField(ctx, name, "branches."+encodeKey(branch))
}

func (s *Store) SetPackageCategories(ctx context.Context, name string, categories []string) error {
	return s.setField(ctx, name, "categories", categories)
}

func (s *Store) SetPackageErrors(ctx context.Context, name string, errs []string) error {
	return s.setField(ctx, name, "errors", errs)
}

func (s *Store) setField(ctx context.Context, name, field string, value interface{}) error {
	res, err := s.packages.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$set": bson.M{field: value}})
	if err != nil {
		return regerr.Wrap(regerr.DbError, err, "setting %s on %q", field, name)
	}
	if res.MatchedCount == 0 {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	return nil
}

func (s *Store) unsetField(ctx context.Context, name, field string) error {
	res, err := s.packages.UpdateOne(ctx, bson.M{"name": name}, bson.M{"$unset": bson.M{field: ""}})
	if err != nil {
		return regerr.Wrap(regerr.DbError, err, "unsetting %s on %q", field, name)
	}
	if res.MatchedCount == 0 {
		return regerr.New(regerr.NotFound, "package %q", name)
	}
	return nil
}

func regexQuoteMeta(s string) string {
	special := `\.+*?()|[]{}^$`
	out := make([]byte, 0, len(s)*2)
	for i := 0; i < len(s); i++ {
		c := s[i]
		for _, sp := range []byte(special) {
			if c == sp {
				out = append(out, '\\')
				break
			}
		}
		out = append(out, c)
	}
	return string(out)
}
