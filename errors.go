package geoAuth

import (
	"errors"

	"github.com/MrEthical07/geoAuth/internal/flows"
)

var (
	// ErrEngineNotReady is returned by operations on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrEngineClosed is returned once Close has been called.
	ErrEngineClosed = errors.New("engine closed")
	// ErrPermissionRequired rejects a login while a required location permission is missing.
	ErrPermissionRequired = errors.New("location permission required")
	// ErrLocationServicesDisabled rejects a login while the system location switch is off.
	ErrLocationServicesDisabled = errors.New("location services disabled")
	// ErrLocationUnavailable rejects a login attempted without a location fix.
	ErrLocationUnavailable = errors.New("location unavailable")
	// ErrOutsidePerimeter rejects a login from outside the office perimeter.
	ErrOutsidePerimeter = errors.New("outside office perimeter")
	// ErrSessionWriteFailed wraps a session store write failure.
	ErrSessionWriteFailed = errors.New("session write failed")
	// ErrMonitorUnavailable is returned when the background monitor cannot be started.
	ErrMonitorUnavailable = errors.New("monitor unavailable")
)

// Action is the remedy a host should offer alongside a message.
type Action uint8

const (
	// ActionNone needs no follow-up beyond showing the message.
	ActionNone Action = iota
	// ActionRequestPermission should trigger the permission prompt.
	ActionRequestPermission
	// ActionOpenLocationSettings should send the user to the location settings screen.
	ActionOpenLocationSettings
)

func (a Action) String() string {
	switch a {
	case ActionRequestPermission:
		return "request_permission"
	case ActionOpenLocationSettings:
		return "open_location_settings"
	default:
		return "none"
	}
}

// RejectionKind classifies a refused login attempt.
type RejectionKind = flows.Rejection

const (
	RejectPermission = flows.RejectPermission
	RejectServices   = flows.RejectServices
	RejectNoLocation = flows.RejectNoLocation
	RejectPerimeter  = flows.RejectPerimeter
)

// Login rejection messages shown to the user.
const (
	MessagePermissionRequired  = "Location permission is required to log in."
	MessageServicesDisabled    = "Please enable location services to log in."
	MessageLocationUnavailable = "Could not get current location. Please ensure location is enabled and try again."
	MessageOutsidePerimeter    = "You are not within the office perimeter to log in."
)

// LoginRejection is returned by AttemptLogin when a check fails. It matches the
// corresponding sentinel with errors.Is.
type LoginRejection struct {
	Kind    RejectionKind
	Message string
	Action  Action
}

func (r *LoginRejection) Error() string {
	return "login rejected: " + r.Kind.String()
}

// Unwrap returns the sentinel for r.Kind, so errors.Is matches it.
func (r *LoginRejection) Unwrap() error {
	return r.sentinel()
}

func (r *LoginRejection) sentinel() error {
	switch r.Kind {
	case RejectPermission:
		return ErrPermissionRequired
	case RejectServices:
		return ErrLocationServicesDisabled
	case RejectNoLocation:
		return ErrLocationUnavailable
	case RejectPerimeter:
		return ErrOutsidePerimeter
	default:
		return nil
	}
}

func newLoginRejection(kind RejectionKind) error {
	switch kind {
	case RejectPermission:
		return &LoginRejection{Kind: kind, Message: MessagePermissionRequired, Action: ActionRequestPermission}
	case RejectServices:
		return &LoginRejection{Kind: kind, Message: MessageServicesDisabled, Action: ActionOpenLocationSettings}
	case RejectNoLocation:
		return &LoginRejection{Kind: kind, Message: MessageLocationUnavailable}
	default:
		return &LoginRejection{Kind: kind, Message: MessageOutsidePerimeter}
	}
}
