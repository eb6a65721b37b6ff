// Package role defines the workspace privilege hierarchy and role sets.
package role

import (
	"fmt"
	"sort"
	"strings"
)

// Role is an ordered privilege level. Higher levels imply lower ones for
// access checks; OWNER is distinguished for succession and role management.
type Role int

const (
	Read Role = iota
	Write
	Admin
	Owner
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "READ":
		return Read, nil
	case "WRITE":
		return Write, nil
	case "ADMIN":
		return Admin, nil
	case "OWNER":
		return Owner, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Admin:
		return "ADMIN"
	case Owner:
		return "OWNER"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// HasAccess reports whether r grants operations requiring at least required.
func (r Role) HasAccess(required Role) bool {
	return r >= required
}

// CanManageRole reports whether r may assign or remove target. Owners manage
// every role; everyone else manages only roles strictly below their own.
func (r Role) CanManageRole(target Role) bool {
	return r == Owner || r > target
}

// Set is a bitset over Role. The zero value is the empty set.
type Set uint8

// FounderSet is granted to the creating member of a workspace and to a
// promoted successor.
var FounderSet = NewSet(Read, Write, Owner)

// NewSet returns a set containing the given roles.
func NewSet(roles ...Role) Set {
	var s Set
	for _, r := range roles {
		s = s.Add(r)
	}
	return s
}

// ParseSet parses a list of role names into a set. Blank entries are ignored.
func ParseSet(names []string) (Set, error) {
	var s Set
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		r, err := ParseRole(n)
		if err != nil {
			return 0, err
		}
		s = s.Add(r)
	}
	return s, nil
}

// Add returns the set with r included.
func (s Set) Add(r Role) Set { return s | 1<<uint(r) }

// Has reports whether r is in the set.
func (s Set) Has(r Role) bool { return s&(1<<uint(r)) != 0 }

// IsEmpty reports whether the set contains no roles.
func (s Set) IsEmpty() bool { return s == 0 }

// Union returns the union of both sets.
func (s Set) Union(other Set) Set { return s | other }

// Max returns the highest role in the set. Call only on non-empty sets;
// returns Read and false for the empty set.
func (s Set) Max() (Role, bool) {
	for r := Owner; r >= Read; r-- {
		if s.Has(r) {
			return r, true
		}
	}
	return Read, false
}

// HasAccess reports whether any role in the set satisfies required.
func (s Set) HasAccess(required Role) bool {
	m, ok := s.Max()
	return ok && m.HasAccess(required)
}

// Names returns the upper-cased role names sorted lexicographically, the
// representation used in events, storage, and identity-provider attributes.
func (s Set) Names() []string {
	names := make([]string, 0, 4)
	for r := Read; r <= Owner; r++ {
		if s.Has(r) {
			names = append(names, r.String())
		}
	}
	sort.Strings(names)
	return names
}

func (s Set) String() string {
	return strings.Join(s.Names(), ",")
}
