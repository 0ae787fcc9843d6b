// seed creates the ADMIN and USER roles and a bootstrap administrator. Run after migrations.
// Idempotent: existing roles are kept and an existing admin account is left untouched.
// When SEED_ADMIN_PASSWORD is empty a password is generated and printed once.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-password/password"

	"credential-session-service/backend/internal/account/domain"
	accountrepo "credential-session-service/backend/internal/account/repository"
	"credential-session-service/backend/internal/app"
	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/db"
	"credential-session-service/backend/internal/identity/service"
)

var seedRoles = []domain.Role{
	{Name: "ADMIN", Description: "Full administrative access", Active: true},
	{Name: "USER", Description: "Standard user", Active: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.Logger(cfg)
	ctx := context.Background()

	conn, dialect, err := app.OpenDB(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	adminRoleID, err := ensureRoles(ctx, conn, dialect)
	if err != nil {
		log.Fatalf("seed roles: %v", err)
	}

	auth, err := app.AuthService(cfg, conn, dialect, logger, nil)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	pw := cfg.SeedAdminPassword
	generated := pw == ""
	if generated {
		if pw, err = generatePassword(); err != nil {
			log.Fatalf("generate password: %v", err)
		}
	}

	res := auth.Register(ctx, service.RegisterInput{
		Username: cfg.SeedAdminUsername,
		Email:    cfg.SeedAdminEmail,
		Password: pw,
		RoleID:   adminRoleID,
	})
	switch {
	case res.Kind == service.KindAlreadyExists:
		log.Printf("Seed already applied (%s exists). Skipping admin.", cfg.SeedAdminUsername)
		return
	case !res.Success:
		log.Fatalf("create admin: %s: %s %v", res.Kind, res.Message, res.Errors)
	}

	log.Println("Seed completed successfully.")
	if generated {
		fmt.Printf("Admin login: %s / %s\n", cfg.SeedAdminUsername, pw)
		fmt.Println("This password is shown once; store it now.")
	} else {
		fmt.Printf("Admin login: %s (password from SEED_ADMIN_PASSWORD)\n", cfg.SeedAdminUsername)
	}
}

// ensureRoles creates any missing seed role and returns the ADMIN role id.
func ensureRoles(ctx context.Context, conn *sql.DB, dialect db.Dialect) (string, error) {
	var adminID string
	err := db.InTx(ctx, conn, func(tx *sql.Tx) error {
		repo := accountrepo.NewSQLRepository(tx, dialect)
		for _, r := range seedRoles {
			existing, err := repo.GetRoleByName(ctx, r.Name)
			if err != nil {
				return err
			}
			if existing == nil {
				role := r
				role.ID = uuid.NewString()
				role.CreatedAt = time.Now().UTC()
				if err := repo.CreateRole(ctx, &role); err != nil {
					return fmt.Errorf("create role %s: %w", r.Name, err)
				}
				existing = &role
			}
			if existing.Name == "ADMIN" {
				adminID = existing.ID
			}
		}
		return nil
	})
	return adminID, err
}

// generatePassword returns a random password that satisfies the registration policy.
func generatePassword() (string, error) {
	for {
		pw, err := password.Generate(24, 4, 4, false, true)
		if err != nil {
			return "", err
		}
		if service.ValidatePassword(pw) == nil {
			return pw, nil
		}
	}
}
