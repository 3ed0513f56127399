package flows

import (
	"math"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/location"
	"github.com/MrEthical07/geoAuth/permission"
)

// Environment is the device state every decision is checked against.
type Environment struct {
	Granted         func(permission.Kind) bool
	RequiredKinds   []permission.Kind
	ServicesEnabled func() bool
}

// PermissionsGranted reports whether every required kind is granted. A missing
// Granted func counts as nothing granted.
func (env Environment) PermissionsGranted() bool {
	if env.Granted == nil {
		return false
	}
	for _, k := range env.RequiredKinds {
		if !env.Granted(k) {
			return false
		}
	}
	return true
}

// LocationServicesEnabled reports the system switch. A missing func counts as off.
func (env Environment) LocationServicesEnabled() bool {
	return env.ServicesEnabled != nil && env.ServicesEnabled()
}

// EvaluateLogin applies the login checks in priority order and returns the first
// failing one, together with the sample's distance from the perimeter centre
// (NaN when there is no sample).
func EvaluateLogin(env Environment, perimeter geo.Perimeter, sample *location.Sample) (Rejection, float64) {
	if !env.PermissionsGranted() {
		return RejectPermission, math.NaN()
	}
	if !env.LocationServicesEnabled() {
		return RejectServices, math.NaN()
	}
	if sample == nil {
		return RejectNoLocation, math.NaN()
	}
	d := perimeter.Distance(sample.Coordinate)
	if !geo.IsWithinPerimeter(sample.Coordinate, perimeter) {
		return RejectPerimeter, d
	}
	return RejectNone, d
}

// PresenceCheck is the monitor's per-sample decision.
type PresenceCheck struct {
	Perimeter geo.Perimeter
	// MaxMissedSamples is the number of consecutive nil samples tolerated before
	// the session ends. Zero disables the limit.
	MaxMissedSamples int
}

// PresenceVerdict is the outcome of one PresenceCheck.
type PresenceVerdict struct {
	Logout   bool
	Reason   Reason
	Missed   int
	Distance float64
}

// Evaluate checks one sample. missed is the count of consecutive nil samples
// seen before this one; the verdict carries the updated count.
func (p PresenceCheck) Evaluate(env Environment, sample *location.Sample, missed int) PresenceVerdict {
	v := PresenceVerdict{Missed: missed, Distance: math.NaN()}
	switch {
	case !env.PermissionsGranted():
		v.Logout, v.Reason = true, ReasonPermissionRevoked
	case !env.LocationServicesEnabled():
		v.Logout, v.Reason = true, ReasonServicesDisabled
	case sample == nil:
		v.Missed++
		if p.MaxMissedSamples > 0 && v.Missed >= p.MaxMissedSamples {
			v.Logout, v.Reason = true, ReasonLocationUnavailable
		}
	default:
		v.Missed = 0
		v.Distance = p.Perimeter.Distance(sample.Coordinate)
		if !geo.IsWithinPerimeter(sample.Coordinate, p.Perimeter) {
			v.Logout, v.Reason = true, ReasonOutsidePerimeter
		}
	}
	return v
}
