package storage

import "github.com/papercomputeco/hrdesk/pkg/roles"

// EncodeVisibility flattens a policy to a comma separated list of role slugs.
// The default policy encodes to the empty string.
func EncodeVisibility(p roles.Policy) string {
	if p.IsDefault() {
		return ""
	}
	return roles.JoinSlugs(p.Resolve())
}

// VisibilitySlugs returns the slugs of the policy's allow-list.
func VisibilitySlugs(p roles.Policy) []string {
	allow := p.Resolve()
	if p.IsDefault() {
		return nil
	}
	out := make([]string, 0, len(allow))
	for _, r := range allow {
		out = append(out, r.Slug())
	}
	return out
}

// DecodeVisibility is the inverse of EncodeVisibility.
func DecodeVisibility(s string) (roles.Policy, error) {
	if s == "" {
		return roles.Everyone(), nil
	}
	rs, err := roles.SplitSlugs(s)
	if err != nil {
		return roles.Policy{}, err
	}
	return roles.Only(rs...), nil
}

// DecodeVisibilitySlugs builds a policy from role slugs.
func DecodeVisibilitySlugs(slugs []string) (roles.Policy, error) {
	if len(slugs) == 0 {
		return roles.Everyone(), nil
	}
	allow := make([]roles.Role, 0, len(slugs))
	for _, s := range slugs {
		r, err := roles.Parse(s)
		if err != nil {
			return roles.Policy{}, err
		}
		allow = append(allow, r)
	}
	return roles.Only(allow...), nil
}
