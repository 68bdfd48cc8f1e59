package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRole is returned when a role string matches neither naming scheme.
var ErrUnknownRole = errors.New("unknown role")

// Role identifies one of the two fixed participants. Storage always uses the
// canonical scheme ("him"/"her"); the UI-facing display scheme ("ảnh"/"ẻm")
// is translated here and nowhere else.
type Role string

const (
	// RoleHim is the storage name of the first partner.
	RoleHim Role = "him"
	// RoleHer is the storage name of the second partner.
	RoleHer Role = "her"
)

var displayNames = map[Role]string{
	RoleHim: "ảnh",
	RoleHer: "ẻm",
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool { return r == RoleHim || r == RoleHer }

// Other returns the partner's role. Other of an unknown role is the zero Role.
func (r Role) Other() Role {
	switch r {
	case RoleHim:
		return RoleHer
	case RoleHer:
		return RoleHim
	default:
		return ""
	}
}

// Storage returns the canonical storage name.
func (r Role) Storage() string { return string(r) }

// DisplayName returns the UI-facing name for the role.
func (r Role) DisplayName() string { return displayNames[r] }

// ParseRole accepts a role in either naming scheme and returns the canonical
// Role. Storage names are matched case-insensitively; display names exactly.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "him":
		return RoleHim, nil
	case "her":
		return RoleHer, nil
	}
	for r, d := range displayNames {
		if strings.TrimSpace(s) == d {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}
