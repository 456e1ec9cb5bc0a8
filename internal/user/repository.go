package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrUserNotFound = errors.New("user not found")

type Repository interface {
	createUser(ctx context.Context, user *User) error
	getUserByID(ctx context.Context, userID string) (*User, error)
	getUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (*User, error)
	userExistsByLoginOrEmail(ctx context.Context, login, email string) (*User, error)
	setTwoFactorSecret(ctx context.Context, userID, secret string) error
	setTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) Repository {
	return &userRepository{db: db}
}

const userColumns = `id, email, login, password_hash, two_factor_enabled, two_factor_secret, created_at, updated_at`

func (r *userRepository) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Login, &u.PasswordHash, &u.TwoFactorEnabled, &u.TwoFactorSecret, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("could not find user: %w", err)
	}
	return &u, nil
}

func (r *userRepository) createUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, login, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at;
	`
	err := r.db.QueryRowContext(ctx, query, user.Email, user.Login, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("could not create user: %w", err)
	}
	return nil
}

func (r *userRepository) getUserByID(ctx context.Context, userID string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, userID))
}

func (r *userRepository) getUserByLoginOrEmail(ctx context.Context, loginOrEmail string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1 OR email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, loginOrEmail))
}

func (r *userRepository) userExistsByLoginOrEmail(ctx context.Context, login, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE login = $1 OR email = $2`
	return r.scanUser(r.db.QueryRowContext(ctx, query, login, email))
}

func (r *userRepository) setTwoFactorSecret(ctx context.Context, userID, secret string) error {
	query := `UPDATE users SET two_factor_secret = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, secret, userID)
	if err != nil {
		return fmt.Errorf("could not store two-factor secret: %w", err)
	}
	return requireOneRow(result)
}

func (r *userRepository) setTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	query := `UPDATE users SET two_factor_enabled = $1, updated_at = NOW() WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, enabled, userID)
	if err != nil {
		return fmt.Errorf("could not update two-factor state: %w", err)
	}
	return requireOneRow(result)
}

func requireOneRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
