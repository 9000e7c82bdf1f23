package auth

import "fmt"

// Role is a closed set of role tags carried in tokens.
type Role int

const (
	RoleUser Role = iota + 1
	RoleAdmin
)

// String returns the tag stored in tokens and the user_roles table.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole maps a wire tag to a Role. Unknown tags are an error so a token
// can never smuggle in a role the server does not know about.
func ParseRole(s string) (Role, error) {
	switch s {
	case "USER":
		return RoleUser, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// elevated reports whether the role bypasses ownership checks.
func (r Role) elevated() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

func rolesToStrings(roles []Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}

func rolesFromStrings(tags []string) ([]Role, error) {
	out := make([]Role, 0, len(tags))
	for _, t := range tags {
		r, err := ParseRole(t)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
