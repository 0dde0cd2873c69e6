package multiverse

import "strings"

// GetPath reads the value at a dotted path from a record. Missing
// intermediate objects are tolerated: the second return is false and no
// error is raised. A bare path reads a top-level key.
func GetPath(rec Record, path string) (interface{}, bool) {
	if rec == nil {
		return nil, false
	}

	head, rest, nested := strings.Cut(path, ".")
	val, ok := rec[head]
	if !ok {
		return nil, false
	}
	if !nested {
		return val, true
	}

	switch child := val.(type) {
	case Record:
		return GetPath(child, rest)
	case map[string]interface{}:
		return GetPath(Record(child), rest)
	default:
		return nil, false
	}
}

// SetPath writes a value at a dotted path in a record, creating intermediate
// objects as needed. An existing non-object intermediate is replaced.
func SetPath(rec Record, path string, value interface{}) {
	head, rest, nested := strings.Cut(path, ".")
	if !nested {
		rec[head] = value
		return
	}

	var child Record
	switch existing := rec[head].(type) {
	case Record:
		child = existing
	case map[string]interface{}:
		child = Record(existing)
	default:
		child = Record{}
		rec[head] = child
	}
	SetPath(child, rest, value)
}

// pathRoot returns the first segment of a dotted path and whether the path
// had further segments.
func pathRoot(path string) (string, bool) {
	head, _, nested := strings.Cut(path, ".")
	return head, nested
}
