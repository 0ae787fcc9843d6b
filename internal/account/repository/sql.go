package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credential-session-service/backend/internal/account/domain"
	"credential-session-service/backend/internal/db"
)

const accountColumns = `id, username, email, password_hash, active, created_at`
const roleColumns = `id, name, description, active, created_at`

// SQLRepository implements Repository over database/sql. It works against a *sql.DB
// or a *sql.Tx, so callers decide the transaction scope.
type SQLRepository struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLRepository returns an account repository that runs its queries on conn.
func NewSQLRepository(conn db.DBTX, dialect db.Dialect) *SQLRepository {
	return &SQLRepository{db: conn, dialect: dialect}
}

// GetByID returns the account for id with its role ids, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// GetByUsername returns the account whose username matches exactly (case-sensitive), or nil if not found.
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
}

func (r *SQLRepository) getAccount(ctx context.Context, query string, arg string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("account: get: %w", err)
	}
	ids, err := r.roleIDs(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.RoleIDs = ids
	return a, nil
}

func (r *SQLRepository) roleIDs(ctx context.Context, accountID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT role_id FROM account_roles WHERE account_id = ? ORDER BY created_at, role_id`), accountID)
	if err != nil {
		return nil, fmt.Errorf("account: role ids: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("account: role ids: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExistsByUsernameOrEmail reports whether any account already uses username or email.
func (r *SQLRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT COUNT(*) FROM accounts WHERE username = ? OR email = ?`), username, email).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("account: exists: %w", err)
	}
	return n > 0, nil
}

// Create persists the account and any RoleIDs it carries. The account must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.Account) error {
	if a.ID == "" {
		return errors.New("account: id is required")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		a.ID, a.Username, a.Email, a.PasswordHash, a.Active, db.ToMillis(a.CreatedAt))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: username or email %q", ErrDuplicate, a.Username)
	}
	if err != nil {
		return fmt.Errorf("account: create: %w", err)
	}
	for _, roleID := range a.RoleIDs {
		if err := r.AssignRole(ctx, a.ID, roleID, a.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// SetActive flips the account's active flag. Returns ErrNotFound when no account has id.
func (r *SQLRepository) SetActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(`UPDATE accounts SET active = ? WHERE id = ?`), active, id)
	if err != nil {
		return fmt.Errorf("account: set active: %w", err)
	}
	return requireAffected(res)
}

// ListRolesForAccount returns the account's assigned roles, active or not, ordered by name.
func (r *SQLRepository) ListRolesForAccount(ctx context.Context, accountID string) ([]*domain.Role, error) {
	return r.listRoles(ctx, `SELECT r.id, r.name, r.description, r.active, r.created_at
		FROM roles r JOIN account_roles ar ON ar.role_id = r.id
		WHERE ar.account_id = ? ORDER BY r.name`, accountID)
}

// AssignRole links a role to an account. Assigning an already-held role is a no-op.
func (r *SQLRepository) AssignRole(ctx context.Context, accountID, roleID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO account_roles (account_id, role_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (account_id, role_id) DO NOTHING`), accountID, roleID, db.ToMillis(at))
	if err != nil {
		return fmt.Errorf("account: assign role: %w", err)
	}
	return nil
}

// RemoveRole unlinks a role from an account. Returns ErrNotFound if it was not assigned.
func (r *SQLRepository) RemoveRole(ctx context.Context, accountID, roleID string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`DELETE FROM account_roles WHERE account_id = ? AND role_id = ?`), accountID, roleID)
	if err != nil {
		return fmt.Errorf("account: remove role: %w", err)
	}
	return requireAffected(res)
}

// GetRoleByID returns the role for id, or nil if not found.
func (r *SQLRepository) GetRoleByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = ?`, id)
}

// GetRoleByName returns the role named name, or nil if not found.
func (r *SQLRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getRole(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = ?`, name)
}

func (r *SQLRepository) getRole(ctx context.Context, query, arg string) (*domain.Role, error) {
	role, err := scanRole(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("account: get role: %w", err)
	}
	return role, nil
}

// CreateRole persists the role. The role must have ID set.
func (r *SQLRepository) CreateRole(ctx context.Context, role *domain.Role) error {
	if role.ID == "" {
		return errors.New("account: role id is required")
	}
	if err := role.Validate(); err != nil {
		return fmt.Errorf("account: %w", err)
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO roles (`+roleColumns+`) VALUES (?, ?, ?, ?, ?)`),
		role.ID, role.Name, role.Description, role.Active, db.ToMillis(role.CreatedAt))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: role %q", ErrDuplicate, role.Name)
	}
	if err != nil {
		return fmt.Errorf("account: create role: %w", err)
	}
	return nil
}

// ListRoles returns every role ordered by name.
func (r *SQLRepository) ListRoles(ctx context.Context) ([]*domain.Role, error) {
	return r.listRoles(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
}

func (r *SQLRepository) listRoles(ctx context.Context, query string, args ...any) ([]*domain.Role, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("account: list roles: %w", err)
	}
	defer rows.Close()
	out := []*domain.Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("account: list roles: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(s scanner) (*domain.Account, error) {
	var a domain.Account
	var created int64
	if err := s.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Active, &created); err != nil {
		return nil, err
	}
	a.CreatedAt = db.FromMillis(created)
	return &a, nil
}

func scanRole(s scanner) (*domain.Role, error) {
	var role domain.Role
	var created int64
	if err := s.Scan(&role.ID, &role.Name, &role.Description, &role.Active, &created); err != nil {
		return nil, err
	}
	role.CreatedAt = db.FromMillis(created)
	return &role, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
