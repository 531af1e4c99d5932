package acl

// Privilege defines access privilege levels for ACL checks.
// Higher privileges subsume lower ones (Administer > Manage > Operate > View).
type Privilege uint8

const (
	// PrivilegeView allows read access to attributes and events.
	PrivilegeView Privilege = 1

	// PrivilegeProxyView allows proxy read access.
	PrivilegeProxyView Privilege = 2

	// PrivilegeOperate allows View plus primary device function.
	PrivilegeOperate Privilege = 3

	// PrivilegeManage allows Operate plus persistent configuration changes.
	PrivilegeManage Privilege = 4

	// PrivilegeAdminister allows everything.
	PrivilegeAdminister Privilege = 5
)

// String returns a human-readable name for the privilege level.
func (p Privilege) String() string {
	switch p {
	case PrivilegeView:
		return "View"
	case PrivilegeProxyView:
		return "ProxyView"
	case PrivilegeOperate:
		return "Operate"
	case PrivilegeManage:
		return "Manage"
	case PrivilegeAdminister:
		return "Administer"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the privilege is a defined value.
func (p Privilege) IsValid() bool {
	return p >= PrivilegeView && p <= PrivilegeAdminister
}

// Grants returns true if this privilege level grants the requested privilege.
//
// ProxyView sits beside the main ladder: it grants View but is only
// granted by itself and Administer.
func (p Privilege) Grants(requested Privilege) bool {
	if !p.IsValid() || !requested.IsValid() {
		return false
	}
	if p == requested || p == PrivilegeAdminister {
		return true
	}
	if requested == PrivilegeProxyView {
		return false
	}
	if p == PrivilegeProxyView {
		return requested == PrivilegeView
	}
	return requested <= p
}

// AuthMode identifies the authentication mode for a session.
type AuthMode uint8

const (
	// AuthModeUnknown indicates an uninitialized or invalid mode.
	AuthModeUnknown AuthMode = 0

	// AuthModePASE indicates Passcode Authenticated Session Establishment.
	AuthModePASE AuthMode = 1

	// AuthModeCASE indicates Certificate Authenticated Session Establishment.
	AuthModeCASE AuthMode = 2

	// AuthModeGroup indicates group authentication (multicast).
	AuthModeGroup AuthMode = 3
)

// String returns a human-readable name for the authentication mode.
func (m AuthMode) String() string {
	switch m {
	case AuthModePASE:
		return "PASE"
	case AuthModeCASE:
		return "CASE"
	case AuthModeGroup:
		return "Group"
	default:
		return "Unknown"
	}
}

// Result represents the outcome of an access control check.
type Result uint8

const (
	// ResultDenied indicates access was denied (no matching entry).
	ResultDenied Result = iota

	// ResultAllowed indicates access was granted by an entry.
	ResultAllowed
)

// String returns a human-readable name for the result.
func (r Result) String() string {
	switch r {
	case ResultDenied:
		return "Denied"
	case ResultAllowed:
		return "Allowed"
	default:
		return "Unknown"
	}
}
