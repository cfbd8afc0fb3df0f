package types

import "slices"

// Role is a structural classification of a hit
type Role string

const (
	RoleEntrypoint      Role = "ENTRYPOINT"
	RoleDiscoveryClient Role = "DISCOVERY_CLIENT"
	RoleDiscoveryServer Role = "DISCOVERY_SERVER"
	RoleRestController  Role = "REST_CONTROLLER"
	RoleRestEndpoint    Role = "REST_ENDPOINT"
	RoleEntity          Role = "ENTITY"
	RoleRepository      Role = "REPOSITORY"
	RoleDTO             Role = "DTO"
	RoleTest            Role = "TEST"
	RoleSpringBean      Role = "SPRING_BEAN"
	RoleConfig          Role = "CONFIG"
	RoleOther           Role = "OTHER"
)

// AllRoles lists every role in declaration order
var AllRoles = []Role{
	RoleEntrypoint, RoleDiscoveryClient, RoleDiscoveryServer,
	RoleRestController, RoleRestEndpoint, RoleEntity, RoleRepository,
	RoleDTO, RoleTest, RoleSpringBean, RoleConfig, RoleOther,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return slices.Contains(AllRoles, r)
}

// RoleSet is an ordered set of roles without duplicates
type RoleSet []Role

// Add appends roles not already present
func (s RoleSet) Add(roles ...Role) RoleSet {
	for _, r := range roles {
		if r != "" && !slices.Contains(s, r) {
			s = append(s, r)
		}
	}
	return s
}

// Has reports whether r is in the set
func (s RoleSet) Has(r Role) bool {
	return slices.Contains(s, r)
}

// HasAny reports whether any of roles is in the set
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every role is in the set
func (s RoleSet) HasAll(roles ...Role) bool {
	for _, r := range roles {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// Primary returns the first role or OTHER
func (s RoleSet) Primary() Role {
	if len(s) == 0 {
		return RoleOther
	}
	return s[0]
}

// Strings converts the set to plain strings
func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}
