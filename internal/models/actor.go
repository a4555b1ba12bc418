package models

import "strings"

type Role string

const (
	RoleSuperAdmin   Role = "super_admin"
	RoleAdmin        Role = "admin"
	RoleStaffAdmin   Role = "staff_admin"
	RoleStaffTraffic Role = "staff_traffic"
	RoleSystem       Role = "system"
)

// ActorContext identifies who performs a settlement action.
type ActorContext struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// ParseRole accepts both the stored form and the display form ("Super Admin").
func ParseRole(raw string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch Role(normalized) {
	case RoleSuperAdmin, RoleAdmin, RoleStaffAdmin, RoleStaffTraffic, RoleSystem:
		return Role(normalized), true
	}
	return "", false
}

// IsPrivileged reports whether the role is one of the two highest.
func (r Role) IsPrivileged() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// IsStaff reports whether the role belongs to a back-office user.
func (r Role) IsStaff() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleStaffAdmin, RoleStaffTraffic:
		return true
	}
	return false
}

// SystemActor is used by scheduled jobs.
func SystemActor(name string) ActorContext {
	return ActorContext{ID: 0, Name: name, Role: RoleSystem}
}
