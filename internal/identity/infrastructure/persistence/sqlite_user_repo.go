package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/slate/internal/identity/domain"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/slate/internal/shared/infrastructure/database/sqlite"
	"github.com/google/uuid"
)

// SQLiteUserRepository handles persistence for users using SQLite.
type SQLiteUserRepository struct {
	conn database.Connection
}

// NewSQLiteUserRepository creates a new SQLiteUserRepository.
func NewSQLiteUserRepository(conn database.Connection) *SQLiteUserRepository {
	return &SQLiteUserRepository{conn: conn}
}

// Save inserts a new user or updates the name of an existing one.
func (r *SQLiteUserRepository) Save(ctx context.Context, user *domain.User) error {
	ex := database.ExecutorFromContext(ctx, r.conn)

	if user.IsNew() {
		_, err := ex.Exec(ctx,
			`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			user.ID().String(), user.Email(), user.Name(),
			sqlite.FormatTime(user.CreatedAt()), sqlite.FormatTime(user.UpdatedAt()))
		if err != nil {
			if database.IsUniqueViolation(err) {
				return domain.ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		user.SetVersion(1)
		return nil
	}

	_, err := ex.Exec(ctx, `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`,
		user.Name(), sqlite.FormatTime(user.UpdatedAt()), user.ID().String())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// FindByID retrieves a user by their ID.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE id = ?`, id.String())
}

// FindByEmail retrieves a user by email address.
func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, `SELECT id, email, name, created_at, updated_at FROM users WHERE email = ?`, email)
}

// List returns every user ordered by name.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx,
		`SELECT id, email, name, created_at, updated_at FROM users ORDER BY name, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Exists reports whether a user with id is registered.
func (r *SQLiteUserRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	err := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE id = ?`, id.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteUserRepository) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	u, err := scanSQLiteUser(database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query, arg))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

func scanSQLiteUser(row database.Row) (*domain.User, error) {
	var id, email, name, createdAt, updatedAt string
	if err := row.Scan(&id, &email, &name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", err)
	}
	created, err := sqlite.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := sqlite.ParseTime(updatedAt)
	if err != nil {
		return nil, err
	}
	return domain.RehydrateUser(uid, email, name, created, updated), nil
}
