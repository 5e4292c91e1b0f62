package domain

import "time"

// PermissionsChanged fires after a committed mutation of roles, permissions,
// grants or role assignments. Subscribers rebuild derived permission state.
type PermissionsChanged struct {
	At time.Time
}
