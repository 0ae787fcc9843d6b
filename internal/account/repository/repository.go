package repository

import (
	"context"
	"errors"
	"time"

	"credential-session-service/backend/internal/account/domain"
)

// ErrNotFound is returned by mutations that target a missing account or role.
var ErrNotFound = errors.New("account: not found")

// ErrDuplicate is returned by Create and CreateRole when a unique column already holds the value.
var ErrDuplicate = errors.New("account: duplicate")

// Repository defines persistence for accounts, roles, and role assignments.
// Lookups return (nil, nil) when the row does not exist.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, a *domain.Account) error
	SetActive(ctx context.Context, id string, active bool) error

	ListRolesForAccount(ctx context.Context, accountID string) ([]*domain.Role, error)
	AssignRole(ctx context.Context, accountID, roleID string, at time.Time) error
	RemoveRole(ctx context.Context, accountID, roleID string) error

	GetRoleByID(ctx context.Context, id string) (*domain.Role, error)
	GetRoleByName(ctx context.Context, name string) (*domain.Role, error)
	CreateRole(ctx context.Context, r *domain.Role) error
	ListRoles(ctx context.Context) ([]*domain.Role, error)
}
