package users

import "slices"

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var allRoles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

func (r Role) Valid() bool { return slices.Contains(allRoles, r) }

// RoleSet is the whitelist a protected operation accepts.
type RoleSet map[Role]struct{}

func Roles(roles ...Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

func (s RoleSet) Contains(r Role) bool {
	_, ok := s[r]
	return ok
}

// Decision is the outcome of an authorization check. Callers decide how to
// surface a denial.
type Decision struct {
	Allowed bool
	Reason  string
}

const ReasonRoleNotPermitted = "You do not have permission to perform this action"

// Authorize checks u's role against allowed. A nil user is always denied.
func Authorize(u *User, allowed RoleSet) Decision {
	if u == nil {
		return Decision{Reason: "You are not logged in! Please login to get access"}
	}
	if !allowed.Contains(u.Role) {
		return Decision{Reason: ReasonRoleNotPermitted}
	}
	return Decision{Allowed: true}
}
