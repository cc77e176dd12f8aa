package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/pixelboard/internal/domain"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

var _ domain.UserReader = (*UserRepo)(nil)

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	var role, status string
	err := r.pool.QueryRow(ctx, `SELECT id, email, role, status FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &role, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = domain.ParseRole(role)
	u.Status = domain.UserStatus(status)
	return &u, nil
}

// Upsert creates the user or refreshes email and role. Status is left to SetStatus.
func (r *UserRepo) Upsert(ctx context.Context, u domain.User) error {
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, role = EXCLUDED.role, updated_at = now()`,
		u.ID, u.Email, string(role))
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (r *UserRepo) SetStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET status = $2, updated_at = now() WHERE id = $1`, userID, string(status))
	if err != nil {
		return fmt.Errorf("failed to set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
