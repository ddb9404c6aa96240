package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserDirectory reads public display names from the account system's users
// table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

func (d *UserDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, `
		SELECT COALESCE(display_name, '')
		FROM users
		WHERE id::text = $1
	`, userID).Scan(&name)
	return name, err
}
