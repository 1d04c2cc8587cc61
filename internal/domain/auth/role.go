package auth

// Role represents an application's authorization role.
// Keep string form for easy persistence and wire compatibility.
type Role string

const (
	RoleGuest             Role = "guest"
	RoleGeneral           Role = "general"
	RoleCommittee         Role = "committee"
	RoleCommitteeOperator Role = "committee_operator"
	RoleAdministrator     Role = "administrator"

	// RoleUnchecked is not a role. It is the resolved role of a snapshot that has
	// not been resolved yet; access decisions for it are always pending.
	RoleUnchecked Role = "unchecked"
)

// roleOrder lists roles from lowest to highest permission strength.
var roleOrder = []Role{
	RoleGuest,
	RoleGeneral,
	RoleCommittee,
	RoleCommitteeOperator,
	RoleAdministrator,
}

// Strength returns the rank of r in the permission order, or -1 when r is not a role.
func (r Role) Strength() int {
	for i, candidate := range roleOrder {
		if candidate == r {
			return i
		}
	}
	return -1
}

// IsValid checks if the role is one of the predefined roles.
func (r Role) IsValid() bool {
	return r.Strength() >= 0
}

// IsAtLeast reports whether r is at least as strong as minRole.
// Unknown roles never satisfy the check.
func (r Role) IsAtLeast(minRole Role) bool {
	if !r.IsValid() || !minRole.IsValid() {
		return false
	}
	return r.Strength() >= minRole.Strength()
}

// IsAtMost reports whether r is at most as strong as maxRole.
// Unknown roles never satisfy the check.
func (r Role) IsAtMost(maxRole Role) bool {
	if !r.IsValid() || !maxRole.IsValid() {
		return false
	}
	return r.Strength() <= maxRole.Strength()
}

// AllRoles returns all roles in ascending permission order.
func AllRoles() []Role {
	return append([]Role(nil), roleOrder...)
}

// ParseRole safely parses a string into a Role.
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}
