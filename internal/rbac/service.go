package rbac

import (
	"sort"
	"strings"
)

// Service resolves permissions for roles. The role list is owned by the
// backend; the mapping onto front-end capabilities lives here.
type Service struct {
	grants map[Role]map[string]struct{}
}

// NewService constructs a Service from the built-in role table.
func NewService() *Service {
	grants := make(map[Role]map[string]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			set[strings.ToLower(p)] = struct{}{}
		}
		grants[role] = set
	}
	return &Service{grants: grants}
}

// EffectivePermissions returns the sorted permissions granted to role.
func (s *Service) EffectivePermissions(role Role) []string {
	set := s.grants[role]
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// Can reports whether role holds perm.
func (s *Service) Can(role Role, perm string) bool {
	if s == nil {
		return false
	}
	_, ok := s.grants[role][strings.ToLower(strings.TrimSpace(perm))]
	return ok
}
