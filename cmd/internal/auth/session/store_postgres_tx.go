package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) TouchLastLogin(ctx context.Context, now time.Time, userID string) error {
	return touchLastLoginTx(ctx, t.tx, now, userID)
}

func (t pgTx) Insert(ctx context.Context, row Row) error {
	return insertTx(ctx, t.tx, row)
}

func touchLastLoginTx(ctx context.Context, tx pgx.Tx, now time.Time, userID string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET last_login_at = $2,
		    updated_at = $2
		WHERE id = $1
	`, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func insertTx(ctx context.Context, tx pgx.Tx, row Row) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, ip, user_agent,
			expires_at, revoked_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, NULL, $7
		)
	`, row.ID, row.UserID, row.RefreshTokenHash, nullIfEmpty(row.IP), nullIfEmpty(row.UserAgent),
		row.ExpiresAt, row.CreatedAt)
	return err
}
