package permission

import "strings"

// Set is a bitmask of granted kinds.
type Set uint64

// SetOf builds a [Set] containing kinds. Unknown kinds are ignored.
func SetOf(kinds ...Kind) Set {
	var s Set
	for _, k := range kinds {
		s = s.With(k)
	}
	return s
}

// Has reports whether k is in s.
func (s Set) Has(k Kind) bool {
	if !k.Valid() {
		return false
	}
	return s&(1<<k) != 0
}

// HasAll reports whether every kind in kinds is in s.
func (s Set) HasAll(kinds ...Kind) bool {
	for _, k := range kinds {
		if !s.Has(k) {
			return false
		}
	}
	return true
}

// With returns s with k added.
func (s Set) With(k Kind) Set {
	if !k.Valid() {
		return s
	}
	return s | (1 << k)
}

// Without returns s with k removed.
func (s Set) Without(k Kind) Set {
	if !k.Valid() {
		return s
	}
	return s &^ (1 << k)
}

// Kinds lists the kinds in s in declaration order.
func (s Set) Kinds() []Kind {
	var out []Kind
	for k := Kind(0); k < kindCount; k++ {
		if s.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Raw returns the underlying mask.
func (s Set) Raw() uint64 {
	return uint64(s)
}

func (s Set) String() string {
	kinds := s.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}
