package identity

import (
	"strings"

	"storefront/internal/domain"
)

// DefaultAdminEmails is the allow-list used when none is configured.
var DefaultAdminEmails = []string{"admin@example.com"}

// RoleResolver derives the role label of a user: the admin flag in profile
// metadata wins, then membership in the admin email allow-list, else user.
type RoleResolver struct {
	adminEmails map[string]struct{}
}

func NewRoleResolver(adminEmails []string) RoleResolver {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return RoleResolver{adminEmails: set}
}

func (r RoleResolver) Role(u domain.User) string {
	if u.MetadataRole == domain.RoleAdmin {
		return domain.RoleAdmin
	}
	if _, ok := r.adminEmails[strings.ToLower(u.Email)]; ok {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

// Identity resolves u into the identity seen by the rest of the system.
func (r RoleResolver) Identity(u domain.User) domain.Identity {
	return domain.Identity{SubjectID: u.ID, Email: u.Email, Role: r.Role(u)}
}
