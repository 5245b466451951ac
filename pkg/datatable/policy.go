package datatable

import (
	"fmt"
	"strings"

	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// Policy controls how a composite variable is broadcast to lower levels.
type Policy int

const (
	// RoleNarrowed broadcasts to the members holding the requested roles
	// only; other rows keep the default. Composite targets receive the value
	// through the owner's role-0 member.
	RoleNarrowed Policy = iota
	// Flood gives every member the value of its group regardless of the
	// requested roles. Composite targets read the owner row reached through
	// their own role-0 member.
	Flood
)

func (p Policy) String() string {
	switch p {
	case RoleNarrowed:
		return "roles"
	case Flood:
		return "flood"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy parses "roles" or "flood"
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "roles", "role_narrowed", "":
		return RoleNarrowed, nil
	case "flood":
		return Flood, nil
	}
	return RoleNarrowed, errors.Newf(errors.ErrorTypeConfig, "unknown broadcast policy %q", s)
}

// ParsePolicies converts a name -> policy-name table, as found in
// configuration files.
func ParsePolicies(raw map[string]string) (map[string]Policy, error) {
	out := make(map[string]Policy, len(raw))
	for name, s := range raw {
		p, err := ParsePolicy(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid policy table").WithDetail("variable", name)
		}
		out[name] = p
	}
	return out, nil
}

// DefaultPolicies returns the household-uniform variables that bypass role
// narrowing.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"so":       Flood,
		"zone_apl": Flood,
		"loyer":    Flood,
		"wprm":     Flood,
		"ppe_coef": Flood,
	}
}
