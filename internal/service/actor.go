package service

import "strings"

// Roles issued by the authentication provider.
const (
	RoleLecturer = "lecturer"
	RoleStudent  = "student"
	RoleAdmin    = "admin"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string
	Role string
}

// IsStaff reports whether the actor may manage exercises and grades.
func (a Actor) IsStaff() bool {
	role := strings.ToLower(a.Role)
	return role == RoleLecturer || role == RoleAdmin
}

// IsStudent reports whether the actor only sees published exercises.
func (a Actor) IsStudent() bool {
	return strings.ToLower(a.Role) == RoleStudent
}

func (a Actor) canManage(createdBy string) bool {
	if strings.ToLower(a.Role) == RoleAdmin {
		return true
	}
	return a.IsStaff() && (createdBy == "" || createdBy == a.ID)
}
