package flows

// Reason explains why the session ended without the user asking for it.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonOutsidePerimeter
	ReasonPermissionRevoked
	ReasonServicesDisabled
	ReasonLocationUnavailable
)

func (r Reason) String() string {
	switch r {
	case ReasonOutsidePerimeter:
		return "outside_perimeter"
	case ReasonPermissionRevoked:
		return "permission_revoked"
	case ReasonServicesDisabled:
		return "services_disabled"
	case ReasonLocationUnavailable:
		return "location_unavailable"
	default:
		return "none"
	}
}

// Rejection classifies a refused login attempt.
type Rejection uint8

const (
	RejectNone Rejection = iota
	RejectPermission
	RejectServices
	RejectNoLocation
	RejectPerimeter
)

func (r Rejection) String() string {
	switch r {
	case RejectPermission:
		return "permission_required"
	case RejectServices:
		return "location_services_disabled"
	case RejectNoLocation:
		return "location_unavailable"
	case RejectPerimeter:
		return "outside_perimeter"
	default:
		return "none"
	}
}
