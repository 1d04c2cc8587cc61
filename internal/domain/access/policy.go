package access

// Package access implements role-based page access control: per-page policies
// evaluated against the resolved role of the auth snapshot.
// Decisions are UX routing only; the backend enforces authorization on its own.

import (
	"fmt"
	"slices"
	"strings"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

// PolicyKind identifies the shape of a PagePolicy.
type PolicyKind int

const (
	PolicyPublic PolicyKind = iota
	PolicyMinimumRole
	PolicyMaximumRole
	PolicyAllowedRoles
)

// PagePolicy is the declarative access rule attached to a page. The zero value is public.
type PagePolicy struct {
	kind  PolicyKind
	role  domainauth.Role
	roles []domainauth.Role
}

// Public places no restriction on the page.
func Public() PagePolicy { return PagePolicy{kind: PolicyPublic} }

// MinimumRole allows roles at least as strong as r.
func MinimumRole(r domainauth.Role) PagePolicy {
	return PagePolicy{kind: PolicyMinimumRole, role: r}
}

// MaximumRole allows roles at most as strong as r.
func MaximumRole(r domainauth.Role) PagePolicy {
	return PagePolicy{kind: PolicyMaximumRole, role: r}
}

// AllowedRoles allows exactly the listed roles.
func AllowedRoles(roles ...domainauth.Role) PagePolicy {
	return PagePolicy{kind: PolicyAllowedRoles, roles: slices.Clone(roles)}
}

// Kind returns the policy shape.
func (p PagePolicy) Kind() PolicyKind { return p.kind }

func (p PagePolicy) String() string {
	switch p.kind {
	case PolicyMinimumRole:
		return "minimum(" + string(p.role) + ")"
	case PolicyMaximumRole:
		return "maximum(" + string(p.role) + ")"
	case PolicyAllowedRoles:
		names := make([]string, len(p.roles))
		for i, r := range p.roles {
			names[i] = string(r)
		}
		return "allowed(" + strings.Join(names, ",") + ")"
	default:
		return "public"
	}
}

// Decision is the navigation outcome of evaluating a policy.
type Decision int

const (
	// DecisionPending means the snapshot is unresolved; callers must not redirect.
	DecisionPending Decision = iota
	DecisionAllow
	DecisionRedirectToLogin
	DecisionRedirectToHome
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirectToLogin:
		return "redirect_to_login"
	case DecisionRedirectToHome:
		return "redirect_to_home"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// IsRedirect reports whether d requires a navigation.
func (d Decision) IsRedirect() bool {
	return d == DecisionRedirectToLogin || d == DecisionRedirectToHome
}

// Evaluate maps a page policy and the resolved role to a navigation decision.
// It never reveals why access was denied: a role that is too low goes to login
// when it is guest, every other denial goes home. Values that are not roles are
// treated as guest.
func Evaluate(policy PagePolicy, resolved domainauth.Role) Decision {
	if resolved == domainauth.RoleUnchecked {
		return DecisionPending
	}
	if !resolved.IsValid() {
		resolved = domainauth.RoleGuest
	}

	switch policy.kind {
	case PolicyPublic:
		return DecisionAllow
	case PolicyMinimumRole:
		if resolved.IsAtLeast(policy.role) {
			return DecisionAllow
		}
		return deny(resolved)
	case PolicyMaximumRole:
		if resolved.IsAtMost(policy.role) {
			return DecisionAllow
		}
		return DecisionRedirectToHome
	case PolicyAllowedRoles:
		if slices.Contains(policy.roles, resolved) {
			return DecisionAllow
		}
		return deny(resolved)
	default:
		return deny(resolved)
	}
}

func deny(resolved domainauth.Role) Decision {
	if resolved == domainauth.RoleGuest {
		return DecisionRedirectToLogin
	}
	return DecisionRedirectToHome
}

// Targets names the routes redirect decisions lead to.
type Targets struct {
	Login string
	Home  string
}

// DefaultTargets returns the portal's standard redirect routes.
func DefaultTargets() Targets {
	return Targets{Login: "/login", Home: "/"}
}

// Path returns the route for d, or "" when d is not a redirect.
func (t Targets) Path(d Decision) string {
	switch d {
	case DecisionRedirectToLogin:
		return t.Login
	case DecisionRedirectToHome:
		return t.Home
	default:
		return ""
	}
}
