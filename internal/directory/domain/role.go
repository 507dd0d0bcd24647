package directory

import "fmt"

// Role classifies a recipient's relationship to a child.
type Role string

const (
	// RoleParent marks a guardian who drives pickup monitoring.
	RoleParent Role = "parent"
	// RoleTeacher marks school staff who receive safety alerts.
	RoleTeacher Role = "teacher"
)

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleParent:
		return RoleParent, nil
	case RoleTeacher:
		return RoleTeacher, nil
	default:
		return "", fmt.Errorf("directory: unknown role %q", raw)
	}
}

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleTeacher
}
