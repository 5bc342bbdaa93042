package model

// PermissionState tracks the one-shot motion permission decision.
type PermissionState string

const (
	PermissionUnknown     PermissionState = "unknown"
	PermissionGranted     PermissionState = "granted"
	PermissionDenied      PermissionState = "denied"
	PermissionNotRequired PermissionState = "not-required"
)

// String returns the string representation of the permission state.
func (p PermissionState) String() string {
	return string(p)
}

// IsTerminal reports whether the state is one of the three decided states.
func (p PermissionState) IsTerminal() bool {
	switch p {
	case PermissionGranted, PermissionDenied, PermissionNotRequired:
		return true
	}
	return false
}

// Listening reports whether motion events are delivered in this state.
func (p PermissionState) Listening() bool {
	return p == PermissionGranted || p == PermissionNotRequired
}

// Capability describes what motion support a platform exposes.
type Capability int

const (
	// CapabilityUnsupported means the platform has no motion events at all.
	CapabilityUnsupported Capability = iota
	// CapabilityUngated means motion events are delivered without a prompt.
	CapabilityUngated
	// CapabilityGated means an explicit async permission request is required
	// first (iOS 13+).
	CapabilityGated
)

func (c Capability) String() string {
	switch c {
	case CapabilityUngated:
		return "supported-ungated"
	case CapabilityGated:
		return "supported-gated"
	default:
		return "unsupported"
	}
}
