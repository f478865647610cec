package permission

import (
	"encoding/json"
	"slices"
	"strings"
)

// Set is an immutable, sorted collection of permission names as issued by the
// server with a session payload. The zero value is an empty set.
type Set struct {
	names []string
}

// NewSet builds a [Set] from raw names. Blank entries are dropped, surrounding
// whitespace is trimmed and duplicates collapse to one entry.
func NewSet(names ...string) Set {
	if len(names) == 0 {
		return Set{}
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return Set{}
	}

	return Set{names: out}
}

// Has reports whether name is present.
func (s Set) Has(name string) bool {
	_, found := slices.BinarySearch(s.names, name)
	return found
}

// HasAny reports whether at least one of names is present.
func (s Set) HasAny(names ...string) bool {
	for _, name := range names {
		if s.Has(name) {
			return true
		}
	}
	return false
}

// HasAll reports whether every one of names is present. An empty argument list
// yields true.
func (s Set) HasAll(names ...string) bool {
	for _, name := range names {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Len returns the number of distinct permission names.
func (s Set) Len() int {
	return len(s.names)
}

// Names returns a sorted copy of the permission names.
func (s Set) Names() []string {
	if len(s.names) == 0 {
		return []string{}
	}
	return slices.Clone(s.names)
}

// Equal reports whether both sets hold the same names.
func (s Set) Equal(other Set) bool {
	return slices.Equal(s.names, other.names)
}

// MarshalJSON encodes the set as a sorted JSON array.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON decodes a JSON array of names, normalizing like [NewSet].
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewSet(names...)
	return nil
}
