package rbac

import "strings"

// Checker answers permission questions against a role policy. Grants ending
// in "*" match every permission with that prefix; a bare "*" matches all.
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{
		exact:    make(map[string]map[string]bool, len(rp)),
		prefixes: make(map[string][]string),
	}
	for role, grants := range rp {
		set := make(map[string]bool, len(grants))
		for _, g := range grants {
			if p, ok := strings.CutSuffix(g, "*"); ok {
				c.prefixes[role] = append(c.prefixes[role], p)
				continue
			}
			set[g] = true
		}
		c.exact[role] = set
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.exact[role][perm] {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}
