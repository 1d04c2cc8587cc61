package access

import (
	"sort"
	"strings"

	domainauth "github.com/festa-portal/portal-client/internal/domain/auth"
)

// Page is the static declaration attached to a route.
type Page struct {
	Path   string
	Title  string
	Policy PagePolicy
}

// Registry resolves routes to page declarations by longest path-prefix match.
type Registry struct {
	pages []Page // sorted by descending path length
}

// NewRegistry builds a registry from page declarations. Later declarations
// for the same path replace earlier ones.
func NewRegistry(pages ...Page) *Registry {
	byPath := make(map[string]Page, len(pages))
	for _, p := range pages {
		p.Path = cleanPath(p.Path)
		byPath[p.Path] = p
	}
	out := make([]Page, 0, len(byPath))
	for _, p := range byPath {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Path) != len(out[j].Path) {
			return len(out[i].Path) > len(out[j].Path)
		}
		return out[i].Path < out[j].Path
	})
	return &Registry{pages: out}
}

// Lookup returns the page declared for path. Unregistered routes resolve to
// the closest registered ancestor; with no ancestor at all the page is
// restricted to administrators.
func (r *Registry) Lookup(path string) Page {
	path = cleanPath(path)
	for _, p := range r.pages {
		if matches(p.Path, path) {
			return p
		}
	}
	return Page{Path: path, Title: "Unknown", Policy: AllowedRoles(domainauth.RoleAdministrator)}
}

// Policy returns the policy for path.
func (r *Registry) Policy(path string) PagePolicy {
	return r.Lookup(path).Policy
}

// Pages returns the declarations ordered by path.
func (r *Registry) Pages() []Page {
	out := append([]Page(nil), r.pages...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func matches(prefix, path string) bool {
	if prefix == "/" || prefix == path {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = "/" + strings.Trim(p, "/")
	return p
}

// PortalPages returns the page declarations of the festival portal.
func PortalPages() []Page {
	return []Page{
		{Path: "/", Title: "Home", Policy: MinimumRole(domainauth.RoleGeneral)},
		{Path: "/about", Title: "About", Policy: Public()},
		{Path: "/login", Title: "Sign in", Policy: MaximumRole(domainauth.RoleGuest)},
		{Path: "/signup", Title: "Sign up", Policy: MaximumRole(domainauth.RoleGuest)},
		{Path: "/reset-password", Title: "Reset password", Policy: MaximumRole(domainauth.RoleGuest)},
		{Path: "/register", Title: "Complete registration", Policy: AllowedRoles(domainauth.RoleGuest)},
		{Path: "/verify-email", Title: "Verify email", Policy: Public()},
		{Path: "/project", Title: "Project registration", Policy: MinimumRole(domainauth.RoleGeneral)},
		{Path: "/forms", Title: "Forms", Policy: MinimumRole(domainauth.RoleGeneral)},
		{Path: "/files", Title: "Files", Policy: MinimumRole(domainauth.RoleGeneral)},
		{Path: "/committee", Title: "Committee", Policy: MinimumRole(domainauth.RoleCommittee)},
		{Path: "/committee/forms", Title: "Committee forms", Policy: MinimumRole(domainauth.RoleCommitteeOperator)},
		{Path: "/committee/files", Title: "Committee files", Policy: MinimumRole(domainauth.RoleCommitteeOperator)},
		{Path: "/admin", Title: "Administration", Policy: AllowedRoles(domainauth.RoleAdministrator)},
	}
}
