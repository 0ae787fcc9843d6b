package domain

import (
	"errors"
	"strings"
	"time"
)

// Account is a principal that can authenticate with a username and password.
type Account struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	RoleIDs      []string // populated by repositories that load assignments
}

// Role is a named grant assignable to accounts. Inactive roles stay assigned but are
// left out of access tokens.
type Role struct {
	ID          string
	Name        string
	Description string
	Active      bool
	CreatedAt   time.Time
}

// Validate validates the account for persistence. Returns an error describing the first validation failure.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Username) == "" {
		return errors.New("username is required")
	}
	if !strings.Contains(a.Email, "@") {
		return errors.New("email is invalid")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}

// Validate validates the role for persistence.
func (r *Role) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("role name is required")
	}
	return nil
}

// ActiveRoleNames returns the names of active roles in the order given.
func ActiveRoleNames(roles []*Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != nil && r.Active {
			out = append(out, r.Name)
		}
	}
	return out
}
