package acl

import "errors"

// Validation errors.
var (
	ErrInvalidFabricIndex = errors.New("acl: invalid fabric index")
	ErrInvalidAuthMode    = errors.New("acl: invalid auth mode")
	ErrInvalidPrivilege   = errors.New("acl: invalid privilege")
	ErrGroupAdminister    = errors.New("acl: group auth mode cannot have administer privilege")
	ErrTargetEmpty        = errors.New("acl: target must have at least one field set")
	ErrInvalidTarget      = errors.New("acl: target uses a wildcard id")
)

// ValidateEntry checks that an entry can be stored.
func ValidateEntry(entry *Entry) error {
	if entry.FabricIndex == 0 || entry.FabricIndex == 0xFF {
		return ErrInvalidFabricIndex
	}
	if entry.AuthMode != AuthModeCASE && entry.AuthMode != AuthModeGroup {
		return ErrInvalidAuthMode
	}
	if !entry.Privilege.IsValid() {
		return ErrInvalidPrivilege
	}
	if entry.AuthMode == AuthModeGroup && entry.Privilege == PrivilegeAdminister {
		return ErrGroupAdminister
	}

	for _, t := range entry.Targets {
		if t.IsEmpty() {
			return ErrTargetEmpty
		}
		if t.Cluster != nil && *t.Cluster == 0xFFFFFFFF {
			return ErrInvalidTarget
		}
		if t.Endpoint != nil && *t.Endpoint == 0xFFFF {
			return ErrInvalidTarget
		}
	}
	return nil
}
