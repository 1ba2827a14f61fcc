package auth

import "fmt"

// Role is the typed access role carried by every authenticated request.
// Role strings from token claims are parsed once at the boundary; domain
// code only ever sees the typed form.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

// ParseRole converts a claim string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleAdmin:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// ParseRoles converts claim strings into Roles, dropping unknown values.
func ParseRoles(ss []string) []Role {
	var roles []Role
	for _, s := range ss {
		if r, err := ParseRole(s); err == nil {
			roles = append(roles, r)
		}
	}
	return roles
}

func (r Role) String() string { return string(r) }

// HasRole reports whether the set contains the given role. Admin is a
// superset of every role.
func HasRole(roles []Role, want Role) bool {
	for _, r := range roles {
		if r == want || r == RoleAdmin {
			return true
		}
	}
	return false
}
