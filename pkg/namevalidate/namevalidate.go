// Package namevalidate enforces the package-name grammar (§4.A): ASCII
// letters, digits, underscore and dash, length at least one. It is
// applied both to package names at admission and to each colon-separated
// segment of a dependency key.
package namevalidate

import (
	"strings"

	"github.com/dalee/vcsreg/pkg/regerr"
)

// Validate returns a regerr of kind InvalidName if name does not match
// the grammar, nil otherwise.
func Validate(name string) error {
	if len(name) == 0 {
		return regerr.New(regerr.InvalidName, "empty name")
	}

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return regerr.New(regerr.InvalidName, "%q contains illegal character %q", name, r)
		}
	}

	return nil
}

// ValidateDependencyKey splits key on ':' and validates every segment,
// per §4.E step 4 / I5.
func ValidateDependencyKey(key string) error {
	for _, segment := range strings.Split(key, ":") {
		if err := Validate(segment); err != nil {
			return regerr.Wrap(regerr.InvalidName, err, "dependency key %q", key)
		}
	}
	return nil
}
