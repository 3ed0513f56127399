package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/MrEthical07/geoAuth/geo"
)

// Field names of the persisted region.
const (
	FieldLoggedIn  = "is_logged_in"
	FieldLatitude  = "user_latitude"
	FieldLongitude = "user_longitude"
)

// DefaultRegion is the region name used when none is configured.
const DefaultRegion = "settings"

var (
	// ErrStoreUnavailable wraps every backend write failure.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrInvalidCoordinate is returned by Login for coordinates outside WGS 84 bounds.
	ErrInvalidCoordinate = errors.New("invalid login coordinate")
)

// State is the persisted session singleton.
type State struct {
	LoggedIn   bool
	Coordinate *geo.Coordinate
}

// Store is the durable session flag.
//
// Implementations must be safe for concurrent use. Login and Logout are atomic:
// either every field changes or none does.
type Store interface {
	// ObserveLoggedIn emits the current flag immediately and then every change.
	// Consecutive duplicates are collapsed. The channel closes when ctx ends.
	ObserveLoggedIn(ctx context.Context) <-chan bool
	// Login sets the flag and records c.
	Login(ctx context.Context, c geo.Coordinate) error
	// Logout clears the flag and the coordinate.
	Logout(ctx context.Context) error
	// LoggedIn is a one-shot, fail-safe read of the flag.
	LoggedIn(ctx context.Context) bool
	// LastKnownCoordinate is a one-shot, fail-safe read of the stored coordinate.
	LastKnownCoordinate(ctx context.Context) *geo.Coordinate
	// State reads flag and coordinate together.
	State(ctx context.Context) State
	Close() error
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

// stateFromFields builds a State from raw field values. A coordinate is returned
// only when both fields are present and parse.
func stateFromFields(loggedIn, lat, lon string, haveLat, haveLon bool) State {
	st := State{LoggedIn: parseBool(loggedIn)}
	if !haveLat || !haveLon {
		return st
	}
	la, errLat := strconv.ParseFloat(lat, 64)
	lo, errLon := strconv.ParseFloat(lon, 64)
	if errLat != nil || errLon != nil {
		return st
	}
	st.Coordinate = &geo.Coordinate{Latitude: la, Longitude: lo}
	return st
}

// observe turns a change feed into the ObserveLoggedIn contract: the current value
// first, then distinct changes. The caller must subscribe to updates before
// calling observe so no change between the read and the subscription is lost.
func observe(ctx context.Context, read func(context.Context) bool, updates <-chan bool) <-chan bool {
	out := make(chan bool)
	go func() {
		defer close(out)

		last := read(ctx)
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}

		for {
			select {
			case v, ok := <-updates:
				if !ok {
					return
				}
				if v == last {
					continue
				}
				last = v
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
