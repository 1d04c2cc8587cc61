package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

var everyResolvedRole = append(domainauth.AllRoles(), domainauth.RoleUnchecked)

func TestEvaluate_PublicAlwaysAllows(t *testing.T) {
	for _, role := range domainauth.AllRoles() {
		assert.Equal(t, DecisionAllow, Evaluate(Public(), role), "role %s", role)
	}
}

func TestEvaluate_UncheckedAlwaysPending(t *testing.T) {
	policies := []PagePolicy{
		Public(),
		MinimumRole(domainauth.RoleCommittee),
		MaximumRole(domainauth.RoleGuest),
		AllowedRoles(domainauth.RoleAdministrator),
		AllowedRoles(),
	}
	for _, p := range policies {
		got := Evaluate(p, domainauth.RoleUnchecked)
		assert.Equal(t, DecisionPending, got, "policy %s", p)
		assert.False(t, got.IsRedirect())
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		policy PagePolicy
		role   domainauth.Role
		want   Decision
	}{
		{"minimum met", MinimumRole(domainauth.RoleCommittee), domainauth.RoleCommittee, DecisionAllow},
		{"minimum exceeded", MinimumRole(domainauth.RoleCommittee), domainauth.RoleAdministrator, DecisionAllow},
		{"minimum too low signed in", MinimumRole(domainauth.RoleCommittee), domainauth.RoleGeneral, DecisionRedirectToHome},
		{"minimum too low guest", MinimumRole(domainauth.RoleCommittee), domainauth.RoleGuest, DecisionRedirectToLogin},
		{"maximum guest allows guest", MaximumRole(domainauth.RoleGuest), domainauth.RoleGuest, DecisionAllow},
		{"maximum guest sends general home", MaximumRole(domainauth.RoleGuest), domainauth.RoleGeneral, DecisionRedirectToHome},
		{"maximum committee allows general", MaximumRole(domainauth.RoleCommittee), domainauth.RoleGeneral, DecisionAllow},
		{"allowed member", AllowedRoles(domainauth.RoleAdministrator), domainauth.RoleAdministrator, DecisionAllow},
		{"allowed excludes operator", AllowedRoles(domainauth.RoleAdministrator), domainauth.RoleCommitteeOperator, DecisionRedirectToHome},
		{"allowed excludes guest", AllowedRoles(domainauth.RoleAdministrator), domainauth.RoleGuest, DecisionRedirectToLogin},
		{"allowed includes guest", AllowedRoles(domainauth.RoleGuest, domainauth.RoleGeneral), domainauth.RoleGuest, DecisionAllow},
		{"unknown role treated as guest", MinimumRole(domainauth.RoleGeneral), domainauth.Role("root"), DecisionRedirectToLogin},
		{"unknown role on maximum", MaximumRole(domainauth.RoleGuest), domainauth.Role("root"), DecisionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.policy, tt.role))
		})
	}
}

func TestEvaluate_MaximumNeverSendsToLogin(t *testing.T) {
	for _, max := range domainauth.AllRoles() {
		for _, role := range everyResolvedRole {
			assert.NotEqual(t, DecisionRedirectToLogin, Evaluate(MaximumRole(max), role))
		}
	}
}

func TestAllowedRoles_CopiesInput(t *testing.T) {
	roles := []domainauth.Role{domainauth.RoleGeneral}
	p := AllowedRoles(roles...)
	roles[0] = domainauth.RoleAdministrator

	assert.Equal(t, DecisionAllow, Evaluate(p, domainauth.RoleGeneral))
}

func TestTargets_Path(t *testing.T) {
	targets := Targets{Login: "/signin", Home: "/dashboard"}
	assert.Equal(t, "/signin", targets.Path(DecisionRedirectToLogin))
	assert.Equal(t, "/dashboard", targets.Path(DecisionRedirectToHome))
	assert.Empty(t, targets.Path(DecisionAllow))
	assert.Empty(t, targets.Path(DecisionPending))
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "public", Public().String())
	assert.Equal(t, "minimum(committee)", MinimumRole(domainauth.RoleCommittee).String())
	assert.Equal(t, "allowed(guest,general)", AllowedRoles(domainauth.RoleGuest, domainauth.RoleGeneral).String())
}
