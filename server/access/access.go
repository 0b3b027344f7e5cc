package access

import "strings"

// DefaultOverrideRoles bypass every zone and door restriction
var DefaultOverrideRoles = []string{"C-Level", "Admin"}

// Policy decides whether a role may be present in a zone or open a door
type Policy struct {
	OverrideRoles []string
}

func NewPolicy(overrideRoles []string) *Policy {
	if len(overrideRoles) == 0 {
		overrideRoles = DefaultOverrideRoles
	}
	return &Policy{
		OverrideRoles: overrideRoles,
	}
}

// IsAuthorized returns true if role is an override role, or appears in allowedRoles.
// An empty role (no resolved identity) is never authorized.
func (p *Policy) IsAuthorized(role string, allowedRoles []string) bool {
	role = strings.TrimSpace(role)
	if role == "" {
		return false
	}
	for _, r := range p.OverrideRoles {
		if r == role {
			return true
		}
	}
	for _, r := range allowedRoles {
		if strings.TrimSpace(r) == role {
			return true
		}
	}
	return false
}
