package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/slate/internal/identity/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// PostgresUserRepository handles persistence for users using PostgreSQL.
type PostgresUserRepository struct {
	conn database.Connection
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(conn database.Connection) *PostgresUserRepository {
	return &PostgresUserRepository{conn: conn}
}

func (r *PostgresUserRepository) Save(ctx context.Context, user *domain.User) error {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if user.IsNew() {
		_, err := ex.Exec(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			user.ID(), user.Email(), user.Name(), user.CreatedAt(), user.UpdatedAt())
		if err != nil {
			if database.IsUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		user.SetVersion(1)
		return nil
	}

	_, err := ex.Exec(ctx, `UPDATE users SET name = $2, updated_at = $3 WHERE id = $1`,
		user.ID(), user.Name(), user.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users ORDER BY name, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanPostgresUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *PostgresUserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return exists, nil
}

func (r *PostgresUserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanPostgresUser(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query, arg))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func scanPostgresUser(row database.Row) (*domain.User, error) {
	var (
		id                   uuid.UUID
		email, name          string
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &email, &name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateUser(id, email, name, createdAt.UTC(), updatedAt.UTC()), nil
}

// NewUserRepository picks the implementation for conn's driver.
func NewUserRepository(conn database.Connection) domain.UserRepository {
	if conn.Driver() == database.DriverPostgres {
		return NewPostgresUserRepository(conn)
	}
	return NewSQLiteUserRepository(conn)
}
