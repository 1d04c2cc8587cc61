// Package authroles maps role strings reported by the backend to portal roles.
package authroles

import (
	"strings"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
	"github.com/festa-portal/portal-client/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// legacyAliases are role names older backend releases still send.
var legacyAliases = map[string]domainauth.Role{
	"admin":              domainauth.RoleAdministrator,
	"user":               domainauth.RoleGeneral,
	"member":             domainauth.RoleGeneral,
	"staff":              domainauth.RoleCommittee,
	"operator":           domainauth.RoleCommitteeOperator,
	"committee-operator": domainauth.RoleCommitteeOperator,
	"committeeoperator":  domainauth.RoleCommitteeOperator,
}

// StaticRoleMapper maps backend role strings by case-insensitive name, then
// by Aliases, then by the built-in legacy aliases. Anything else maps to
// the Fallback role (guest when unset).
type StaticRoleMapper struct {
	Aliases  map[string]domainauth.Role
	Fallback domainauth.Role
}

// Map returns the portal role for raw.
func (m StaticRoleMapper) Map(raw string) domainauth.Role {
	name := NormalizeName(raw)

	if role, ok := domainauth.ParseRole(name); ok {
		return role
	}
	if role, ok := m.Aliases[name]; ok && role.IsValid() {
		return role
	}
	if role, ok := legacyAliases[name]; ok {
		return role
	}
	if m.Fallback.IsValid() {
		return m.Fallback
	}
	return domainauth.RoleGuest
}

// NormalizeName lowercases a role name and replaces spaces with underscores.
func NormalizeName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(name, " ", "_")
}
