package authkit

import "strings"

// Role is a canonical lowercase role name drawn from a closed set.
type Role string

// The closed role set. Adding a role requires updating LandingPath.
const (
	RoleAdmin        Role = "admin"
	RoleTeacher      Role = "teacher"
	RoleParent       Role = "parent"
	RoleBursar       Role = "bursar"
	RoleStudent      Role = "student"
	RoleSecretary    Role = "secretary"
	RoleSupportStaff Role = "support_staff"
)

// Roles lists every known role.
var Roles = []Role{
	RoleAdmin, RoleTeacher, RoleParent, RoleBursar,
	RoleStudent, RoleSecretary, RoleSupportStaff,
}

// NormalizeRole lowercases and trims a role name. The result is not
// guaranteed to be a member of the closed set; use Known to check.
func NormalizeRole(s string) Role {
	return Role(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether r is a member of the closed role set.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleParent, RoleBursar,
		RoleStudent, RoleSecretary, RoleSupportStaff:
		return true
	default:
		return false
	}
}

// LoginPath is where unauthenticated users land. Also the fallback
// when no tenant slug is available to build a scoped path.
const LoginPath = "/login"

// LandingPath maps a role to its canonical dashboard path scoped
// under the tenant slug. An unrecognized role falls back to the
// generic tenant dashboard. An empty slug cannot produce a valid
// tenant path and routes to the login page instead.
func (r Role) LandingPath(slug string) string {
	slug = NormalizeSlug(slug)
	if slug == "" {
		return LoginPath
	}
	switch r {
	case RoleAdmin:
		return "/" + slug + "/admin/dashboard"
	case RoleTeacher:
		return "/" + slug + "/teacher/dashboard"
	case RoleParent:
		return "/" + slug + "/parent/dashboard"
	case RoleBursar:
		return "/" + slug + "/bursar/dashboard"
	case RoleStudent:
		return "/" + slug + "/student/dashboard"
	case RoleSecretary:
		return "/" + slug + "/secretary/dashboard"
	case RoleSupportStaff:
		return "/" + slug + "/support/dashboard"
	default:
		return "/" + slug + "/dashboard"
	}
}

// In reports whether r equals any of the given roles, comparing in
// canonical form.
func (r Role) In(roles ...Role) bool {
	norm := NormalizeRole(string(r))
	for _, cand := range roles {
		if norm == NormalizeRole(string(cand)) {
			return true
		}
	}
	return false
}
