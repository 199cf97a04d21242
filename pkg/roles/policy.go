package roles

import (
	"fmt"
	"slices"
	"strings"

	"github.com/papercomputeco/hrdesk/pkg/errdefs"
)

// Policy decides which roles may retrieve passages from a document.
// An empty allow-list means every role, which is the default for HR content.
type Policy struct {
	Allow []Role `json:"allow,omitempty" toml:"allow,omitempty"`
}

// Everyone is the default organization-wide policy.
func Everyone() Policy {
	return Policy{}
}

// Only restricts a document to the listed roles. Unknown roles are kept so that
// Validate reports them; they never widen the policy to everyone.
func Only(rs ...Role) Policy {
	return Policy{Allow: dedupe(rs)}
}

// AtLeast restricts a document to roles whose rank is at least min's.
func AtLeast(min Role) Policy {
	var allow []Role
	for _, r := range All() {
		if r.Rank() >= min.Rank() {
			allow = append(allow, r)
		}
	}
	return Policy{Allow: allow}
}

// IsDefault reports whether the policy is the all-roles default.
func (p Policy) IsDefault() bool {
	return len(p.Allow) == 0
}

// Validate rejects allow-lists naming a role that does not exist.
func (p Policy) Validate() error {
	for _, r := range p.Allow {
		if !r.Valid() {
			return fmt.Errorf("%w: visibility names unknown role %d", errdefs.ErrInvalidInput, int(r))
		}
	}
	return nil
}

// Resolve returns the explicit roles permitted by the policy, ordered by rank.
// This is what gets stamped onto every indexed chunk. Unknown roles are
// dropped, so a policy naming only unknown roles resolves to nobody.
func (p Policy) Resolve() []Role {
	if p.IsDefault() {
		return All()
	}
	out := make([]Role, 0, len(p.Allow))
	for _, r := range dedupe(p.Allow) {
		if r.Valid() {
			out = append(out, r)
		}
	}
	slices.Sort(out)
	return out
}

// VisibleTo reports whether role may retrieve passages from a document governed
// by policy.
func VisibleTo(role Role, policy Policy) bool {
	if !role.Valid() {
		return false
	}
	if policy.IsDefault() {
		return true
	}
	return slices.Contains(policy.Allow, role)
}

// ParsePolicy reads the command-line form of a policy: "" or "everyone" for
// the default, "min:<role>" for AtLeast, or a comma separated list of roles
// for Only.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "everyone"):
		return Everyone(), nil
	case strings.HasPrefix(strings.ToLower(s), "min:"):
		r, err := Parse(s[len("min:"):])
		if err != nil {
			return Policy{}, err
		}
		return AtLeast(r), nil
	default:
		rs, err := SplitSlugs(s)
		if err != nil {
			return Policy{}, err
		}
		if len(rs) == 0 {
			return Policy{}, fmt.Errorf("empty visibility %q", s)
		}
		return Only(rs...), nil
	}
}

// String renders p in the form ParsePolicy accepts.
func (p Policy) String() string {
	if p.IsDefault() {
		return "everyone"
	}
	return JoinSlugs(p.Resolve())
}

func dedupe(rs []Role) []Role {
	out := make([]Role, 0, len(rs))
	for _, r := range rs {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
