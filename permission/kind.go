package permission

import (
	"errors"
	"strings"
)

// ErrUnknownKind is returned by [ParseKind] for unrecognised names.
var ErrUnknownKind = errors.New("unknown permission kind")

// Kind identifies one platform permission.
type Kind uint8

const (
	// ForegroundLocation grants location access while the app is visible.
	ForegroundLocation Kind = iota
	// BackgroundLocation grants location access from the background monitor.
	BackgroundLocation
	// Notifications grants posting the ongoing monitoring notification.
	Notifications
	kindCount
)

var kindNames = [kindCount]string{
	ForegroundLocation: "foreground_location",
	BackgroundLocation: "background_location",
	Notifications:      "notifications",
}

// String returns the snake_case name of k.
func (k Kind) String() string {
	if k >= kindCount {
		return "unknown"
	}
	return kindNames[k]
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k < kindCount
}

// ParseKind maps a configuration name back to a [Kind]. Matching is
// case-insensitive and accepts '-' in place of '_'.
func ParseKind(name string) (Kind, error) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for k := Kind(0); k < kindCount; k++ {
		if kindNames[k] == n {
			return k, nil
		}
	}
	return 0, ErrUnknownKind
}

// AllKinds returns every known kind in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// LocationKinds returns the location kinds a login requires. Background location
// is included only when requireBackground is set.
func LocationKinds(requireBackground bool) []Kind {
	if requireBackground {
		return []Kind{ForegroundLocation, BackgroundLocation}
	}
	return []Kind{ForegroundLocation}
}
