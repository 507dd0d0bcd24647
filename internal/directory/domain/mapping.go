package directory

import (
	"errors"
	"fmt"
	"time"
)

// RecipientMapping binds a chat recipient to a child under a role.
// RecipientID is the opaque chat identifier the messenger delivers to.
type RecipientMapping struct {
	RecipientID string
	ChildID     string
	Role        Role
	Active      bool
	CreatedAt   time.Time
}

// Validate checks mapping invariants.
func (m RecipientMapping) Validate() error {
	if m.RecipientID == "" {
		return errors.New("directory: empty recipient id")
	}
	if m.ChildID == "" {
		return errors.New("directory: empty child id")
	}
	if !m.Role.Valid() {
		return fmt.Errorf("directory: unknown role %q", m.Role)
	}
	return nil
}

// ActiveTeachers filters mappings down to active teacher recipients.
func ActiveTeachers(mappings []RecipientMapping) []RecipientMapping {
	var result []RecipientMapping
	for _, m := range mappings {
		if m.Active && m.Role == RoleTeacher {
			result = append(result, m)
		}
	}
	return result
}

// HasActive reports whether the recipient holds any active mapping for the
// child, regardless of role.
func HasActive(mappings []RecipientMapping, recipientID string) bool {
	for _, m := range mappings {
		if m.Active && m.RecipientID == recipientID {
			return true
		}
	}
	return false
}
