package geoAuth

import (
	"time"

	"github.com/MrEthical07/geoAuth/geo"
	"github.com/MrEthical07/geoAuth/internal/flows"
)

// SessionState is the engine's view of the session flag.
type SessionState uint8

const (
	LoggedOut SessionState = iota
	LoggedIn
)

func (s SessionState) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// State is the session as the engine reports it.
type State struct {
	Session SessionState
	// Coordinate is the location recorded at login; nil when logged out.
	Coordinate *geo.Coordinate
	// Reason is set by Reconcile when it ended a persisted session.
	Reason LogoutReason
}

// LoggedIn reports whether the session is active.
func (s State) LoggedIn() bool {
	return s.Session == LoggedIn
}

// LoginResult describes a successful login.
type LoginResult struct {
	Coordinate     geo.Coordinate
	DistanceMeters float64
	// MonitorSession identifies the monitoring session started for this login.
	MonitorSession string
}

// LogoutReason explains an automatic logout.
type LogoutReason = flows.Reason

const (
	ReasonNone                = flows.ReasonNone
	ReasonOutsidePerimeter    = flows.ReasonOutsidePerimeter
	ReasonPermissionRevoked   = flows.ReasonPermissionRevoked
	ReasonServicesDisabled    = flows.ReasonServicesDisabled
	ReasonLocationUnavailable = flows.ReasonLocationUnavailable
)

// MessageAutoLogout is shown for automatic logouts without a more specific remedy.
const MessageAutoLogout = "You were logged out automatically."

// Notice is the transient event published after an automatic logout.
type Notice struct {
	ID             string
	Reason         LogoutReason
	Message        string
	Action         Action
	MonitorSession string
	At             time.Time
}

func noticeText(reason LogoutReason) (string, Action) {
	switch reason {
	case ReasonPermissionRevoked:
		return "You were logged out automatically because location permission was revoked.", ActionRequestPermission
	case ReasonServicesDisabled:
		return "You were logged out automatically because location services were turned off.", ActionOpenLocationSettings
	default:
		return MessageAutoLogout, ActionNone
	}
}
