package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credential-session-service/backend/internal/db"
	"credential-session-service/backend/internal/security"
	"credential-session-service/backend/internal/session/domain"
)

const sessionColumns = `id, account_id, token_hash, issued_at, expires_at, revoked, revoked_at, replaced_by`

// SQLRepository is the session store adapter over database/sql.
type SQLRepository struct {
	db      db.DBTX
	dialect db.Dialect
}

// NewSQLRepository returns a session repository that runs its queries on conn.
func NewSQLRepository(conn db.DBTX, dialect db.Dialect) *SQLRepository {
	return &SQLRepository{db: conn, dialect: dialect}
}

// Create persists the session. ID, AccountID and TokenHash must be set.
func (r *SQLRepository) Create(ctx context.Context, s *domain.Session) error {
	if s.ID == "" || s.AccountID == "" || s.TokenHash == "" {
		return errors.New("session: id, account id and token hash are required")
	}
	if !s.ExpiresAt.After(s.IssuedAt) {
		return errors.New("session: expires_at must be after issued_at")
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		s.ID, s.AccountID, s.TokenHash, db.ToMillis(s.IssuedAt), db.ToMillis(s.ExpiresAt),
		s.Revoked, millisOrNull(s.RevokedAt), stringOrNull(s.ReplacedBy))
	if err != nil {
		return fmt.Errorf("session: create: %w", err)
	}
	return nil
}

// FindByToken looks the session up by the hash of token.
func (r *SQLRepository) FindByToken(ctx context.Context, token string, now time.Time) (*domain.Session, Lookup, error) {
	if token == "" {
		return nil, LookupNotFound, nil
	}
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`), security.HashRefreshToken(token))
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, LookupNotFound, nil
		}
		return nil, LookupNotFound, fmt.Errorf("session: find: %w", err)
	}
	switch s.StateAt(now) {
	case domain.StateRevoked:
		return s, LookupRevoked, nil
	case domain.StateExpired:
		return s, LookupExpired, nil
	default:
		return s, LookupFound, nil
	}
}

// Revoke marks the session for token revoked. Only the first revocation sets revoked_at.
func (r *SQLRepository) Revoke(ctx context.Context, token string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE sessions SET revoked = TRUE, revoked_at = ? WHERE token_hash = ? AND revoked = FALSE`),
		db.ToMillis(now), security.HashRefreshToken(token))
	if err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

// Replace revokes oldID, records next.ID as its successor, and inserts next.
// It fails if oldID was already revoked, so a token can be rotated at most once.
func (r *SQLRepository) Replace(ctx context.Context, oldID string, next *domain.Session, now time.Time) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE sessions SET revoked = TRUE, revoked_at = ?, replaced_by = ? WHERE id = ? AND revoked = FALSE`),
		db.ToMillis(now), next.ID, oldID)
	if err != nil {
		return fmt.Errorf("session: replace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session: replace: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session: replace %s: %w", oldID, ErrNotUsable)
	}
	return r.Create(ctx, next)
}

// RevokeAllByAccount revokes every live session of the account and returns how many changed.
func (r *SQLRepository) RevokeAllByAccount(ctx context.Context, accountID string, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE sessions SET revoked = TRUE, revoked_at = ? WHERE account_id = ? AND revoked = FALSE`),
		db.ToMillis(now), accountID)
	if err != nil {
		return 0, fmt.Errorf("session: revoke all: %w", err)
	}
	return res.RowsAffected()
}

// PurgeExpired deletes sessions whose expiry is at or before now, revoked or not.
func (r *SQLRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`DELETE FROM sessions WHERE expires_at <= ?`), db.ToMillis(now))
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return res.RowsAffected()
}

func scanSession(row *sql.Row) (*domain.Session, error) {
	var s domain.Session
	var issued, expires int64
	var revokedAt sql.NullInt64
	var replacedBy sql.NullString
	if err := row.Scan(&s.ID, &s.AccountID, &s.TokenHash, &issued, &expires, &s.Revoked, &revokedAt, &replacedBy); err != nil {
		return nil, err
	}
	s.IssuedAt = db.FromMillis(issued)
	s.ExpiresAt = db.FromMillis(expires)
	if revokedAt.Valid {
		t := db.FromMillis(revokedAt.Int64)
		s.RevokedAt = &t
	}
	s.ReplacedBy = replacedBy.String
	return &s, nil
}

func millisOrNull(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: db.ToMillis(*t), Valid: true}
}

func stringOrNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
