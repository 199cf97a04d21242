// Package roles is the static role model: the four organizational roles, the
// capability table that drives every authorization decision, and the document
// visibility policy used to tag and filter indexed passages.
package roles

import (
	"fmt"
	"strings"
)

// Role is one of the organizational roles a verified principal can hold.
type Role int

const (
	Employee Role = iota
	TeamLead
	HRExecutive
	HRManager
)

const (
	// MaxHRManagers is the number of HR Manager accounts allowed system-wide.
	MaxHRManagers = 1

	// MaxTeamLeads is the number of Team Lead accounts allowed system-wide.
	MaxTeamLeads = 4
)

// Capabilities is the set of things a role may do. The zero value grants nothing.
type Capabilities struct {
	// Upload allows ingesting documents.
	Upload bool

	// DeleteAny allows removing any member other than oneself.
	DeleteAny bool

	// DeleteOwnTeam allows removing Employees whose team lead is the actor.
	DeleteOwnTeam bool

	// DeleteDocuments allows permanent removal of indexed documents.
	DeleteDocuments bool

	// MaxInstances caps how many accounts may hold the role. Zero is unlimited.
	MaxInstances int
}

type definition struct {
	name string
	slug string
	rank int
	caps Capabilities
}

// table is the single source of truth for role attributes. Indexed by Role.
var table = [...]definition{
	Employee: {
		name: "Employee",
		slug: "employee",
		rank: 0,
	},
	TeamLead: {
		name: "Team Lead",
		slug: "team_lead",
		rank: 1,
		caps: Capabilities{DeleteOwnTeam: true, MaxInstances: MaxTeamLeads},
	},
	HRExecutive: {
		name: "HR Executive",
		slug: "hr_executive",
		rank: 2,
		caps: Capabilities{DeleteAny: true, DeleteDocuments: true},
	},
	HRManager: {
		name: "HR Manager",
		slug: "hr_manager",
		rank: 3,
		caps: Capabilities{Upload: true, DeleteAny: true, DeleteDocuments: true, MaxInstances: MaxHRManagers},
	},
}

// All returns every role ordered by ascending visibility rank.
func All() []Role {
	return []Role{Employee, TeamLead, HRExecutive, HRManager}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r >= Employee && r <= HRManager
}

// String returns the display name, e.g. "Team Lead".
func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return table[r].name
}

// Slug returns the identifier-safe name used in index metadata, e.g. "team_lead".
func (r Role) Slug() string {
	if !r.Valid() {
		return ""
	}
	return table[r].slug
}

// Rank is the role's visibility rank. Higher ranks see at least as much.
func (r Role) Rank() int {
	if !r.Valid() {
		return -1
	}
	return table[r].rank
}

// Capabilities returns the role's capability set.
func (r Role) Capabilities() Capabilities {
	if !r.Valid() {
		return Capabilities{}
	}
	return table[r].caps
}

// MaxInstances is the account cap the user-management collaborator enforces.
func (r Role) MaxInstances() int {
	return r.Capabilities().MaxInstances
}

// MarshalText encodes the role by its slug.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
	return []byte(r.Slug()), nil
}

// UnmarshalText accepts either the display name or the slug.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Parse resolves a display name ("HR Manager") or slug ("hr_manager"),
// case-insensitively.
func Parse(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, r := range All() {
		if norm == r.Slug() {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Principal is an already-authenticated caller as resolved by the
// user-management collaborator.
type Principal struct {
	UserID string
	Role   Role

	// TeamLead is the user ID of this principal's team lead. Only meaningful
	// for Employees.
	TeamLead string
}

// JoinSlugs renders rs as a comma separated slug list.
func JoinSlugs(rs []Role) string {
	slugs := make([]string, 0, len(rs))
	for _, r := range rs {
		slugs = append(slugs, r.Slug())
	}
	return strings.Join(slugs, ",")
}

// SplitSlugs is the inverse of JoinSlugs.
func SplitSlugs(s string) ([]Role, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Role, 0, len(parts))
	for _, p := range parts {
		r, err := Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
