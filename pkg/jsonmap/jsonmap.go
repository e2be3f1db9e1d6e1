// Package jsonmap provides small helpers for reading typed values out of
// untyped JSON documents, the shape package.json/composer.json metadata
// arrives in once decoded. Adapted from the teacher's
// pkg/client.JsonMap, generalized for reuse across the catalog, metadata
// validator and info cache.
package jsonmap

import "fmt"

// Map is a JSON object decoded into Go's generic representation.
type Map map[string]interface{}

var errFmtKeyIsAbsent = "key %q not found in document"

// GetString extracts a string value, erroring if absent or the wrong type.
func (m Map) GetString(key string) (string, error) {
	raw, ok := m[key]
	if !ok {
		return "", fmt.Errorf(errFmtKeyIsAbsent, key)
	}

	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value for %q is not a string", key)
	}

	return value, nil
}

// GetStringDefault is GetString with a fallback for absent/mistyped keys.
func (m Map) GetStringDefault(key, def string) string {
	if value, err := m.GetString(key); err == nil {
		return value
	}
	return def
}

// GetList extracts an array value.
func (m Map) GetList(key string) ([]interface{}, error) {
	raw, ok := m[key]
	if !ok {
		return nil, fmt.Errorf(errFmtKeyIsAbsent, key)
	}

	value, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("value for %q is not an array", key)
	}

	return value, nil
}

// GetMap extracts a nested object value.
func (m Map) GetMap(key string) (Map, error) {
	raw, ok := m[key]
	if !ok {
		return nil, fmt.Errorf(errFmtKeyIsAbsent, key)
	}

	switch value := raw.(type) {
	case Map:
		return value, nil
	case map[string]interface{}:
		return Map(value), nil
	default:
		return nil, fmt.Errorf("value for %q is not an object", key)
	}
}

// Has reports whether key is present at all, regardless of its type.
func (m Map) Has(key string) bool {
	_, ok := m[key]
	return ok
}
