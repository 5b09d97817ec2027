package processor

import "strings"

// ResolvePath walks a dot-separated path through nested maps. The second
// return value reports whether the full path resolved; an unresolved path is
// not an error.
func ResolvePath(data map[string]interface{}, path string) (interface{}, bool) {
	if path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current interface{} = data

	for _, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// ApplyMapping rewrites a raw output into the caller-specified shape. Each
// mapping value is resolved as a dot-path against the raw output; keys whose
// path does not resolve are absent from the result rather than failing the
// node. A nil mapping returns the raw output unchanged.
func ApplyMapping(mapping map[string]string, raw map[string]interface{}) map[string]interface{} {
	if len(mapping) == 0 {
		return raw
	}

	mapped := make(map[string]interface{}, len(mapping))
	for key, path := range mapping {
		if value, ok := ResolvePath(raw, path); ok {
			mapped[key] = value
		}
	}
	return mapped
}
