package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"market/internal/auth/models"
	"market/internal/platform/postgres"
	id "market/pkg/domain"
	"market/pkg/platform/sentinel"
)

// PostgresStore persists accounts in the users table. Statements join the
// ambient transaction when one is present in the context.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectUserColumns = `SELECT id, login, created_at FROM users`

func (s *PostgresStore) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	row := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, selectUserColumns+` WHERE login = $1`, login)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user by login: %w", err)
	}
	return u, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := postgres.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, selectUserColumns+` WHERE id = $1`, uuid.UUID(userID))
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// CreateIfLoginAvailable inserts u relying on the users_login_unique constraint;
// a lost race surfaces as sentinel.ErrAlreadyUsed.
func (s *PostgresStore) CreateIfLoginAvailable(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is required")
	}
	res, err := postgres.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO users (id, login, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (login) DO NOTHING
	`, uuid.UUID(u.ID), u.Login, u.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("login %q: %w", u.Login, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("login %q: %w", u.Login, sentinel.ErrAlreadyUsed)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		userID uuid.UUID
		u      models.User
	)
	if err := row.Scan(&userID, &u.Login, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	u.ID = id.UserID(userID)
	return &u, nil
}
