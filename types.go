package authkit

import (
	"encoding/json"
	"strings"
)

// User represents the authenticated principal.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Role        Role   `json:"role"`
	Avatar      string `json:"profilePicture,omitempty"`
	StaffCode   string `json:"staffCode,omitempty"`
	AdmissionNo string `json:"admissionNumber,omitempty"`
}

// UnmarshalJSON normalizes the role to its canonical lowercase form.
// Upstream systems return mixed-case role names.
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Role = NormalizeRole(string(a.Role))
	*u = User(a)
	return nil
}

// FullName returns "First Last" with surrounding whitespace trimmed.
// Returns the empty string when both parts are empty.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// AvatarOrInitials returns the profile picture URL if present,
// otherwise an uppercase initials fallback (e.g. "JD").
func (u *User) AvatarOrInitials() string {
	if u == nil {
		return ""
	}
	if u.Avatar != "" {
		return u.Avatar
	}
	var b strings.Builder
	for _, part := range []string{u.FirstName, u.LastName} {
		part = strings.TrimSpace(part)
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
		}
	}
	return b.String()
}

// School represents the tenant the user belongs to. Slug is the URL
// path segment and the partition key for multi-tenant isolation.
type School struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Code string `json:"code,omitempty"`

	// Optional branding.
	LogoURL      string `json:"logoUrl,omitempty"`
	PrimaryColor string `json:"primaryColor,omitempty"`
	PortalTitle  string `json:"portalTitle,omitempty"`
}

// UnmarshalJSON lowercases the slug so path construction and
// comparisons are case-insensitive.
func (s *School) UnmarshalJSON(data []byte) error {
	type alias School
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	a.Slug = NormalizeSlug(a.Slug)
	*s = School(a)
	return nil
}

// NormalizeSlug trims and lowercases a tenant slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// Credentials is the access/refresh pair issued by the backend.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserPatch holds optional field updates for User. Nil fields are
// left untouched by Apply.
type UserPatch struct {
	Email     *string
	FirstName *string
	LastName  *string
	Avatar    *string
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
}
