// Package repository binds the identity service's unit of work to a SQL database.
package repository

import (
	"context"
	"database/sql"
	"errors"

	accountrepo "credential-session-service/backend/internal/account/repository"
	"credential-session-service/backend/internal/db"
	"credential-session-service/backend/internal/identity/service"
	sessionrepo "credential-session-service/backend/internal/session/repository"
)

// SQLUnitOfWork runs each Do in one database transaction, with account and
// session repositories bound to that transaction.
type SQLUnitOfWork struct {
	conn    *sql.DB
	dialect db.Dialect
}

// NewSQLUnitOfWork returns a unit of work over conn.
func NewSQLUnitOfWork(conn *sql.DB, dialect db.Dialect) (*SQLUnitOfWork, error) {
	if conn == nil {
		return nil, errors.New("unit of work: connection is required")
	}
	return &SQLUnitOfWork{conn: conn, dialect: dialect}, nil
}

// Do commits when fn returns nil and rolls back otherwise.
func (u *SQLUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, s service.Stores) error) error {
	return db.InTx(ctx, u.conn, func(tx *sql.Tx) error {
		return fn(ctx, service.Stores{
			Accounts: accountrepo.NewSQLRepository(tx, u.dialect),
			Sessions: sessionrepo.NewSQLRepository(tx, u.dialect),
		})
	})
}

var _ service.UnitOfWork = (*SQLUnitOfWork)(nil)
