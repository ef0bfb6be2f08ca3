package db

import (
	"context"

	"bubbletasks/internal/types"
)

// DeviceTokenRepository provides data access for the `device_tokens`
// table. Tokens are written by the client apps at registration time; the
// push worker reads them for fan-out and prunes the ones the gateway
// rejects as dead.
type DeviceTokenRepository struct {
	db DBTX
}

// NewDeviceTokenRepository creates a DeviceTokenRepository backed by the
// given database connection.
func NewDeviceTokenRepository(db DBTX) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// ListByUser returns the user's registered device tokens.
func (r *DeviceTokenRepository) ListByUser(ctx context.Context, userID string) ([]types.DeviceToken, error) {
	rows, err := r.db.Query(ctx,
		`SELECT token, user_id, platform, created_at
		 FROM device_tokens
		 WHERE user_id = $1
		 ORDER BY created_at`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list device tokens", err)
	}
	defer rows.Close()

	var tokens []types.DeviceToken
	for rows.Next() {
		var t types.DeviceToken
		if err := rows.Scan(&t.Token, &t.UserID, &t.Platform, &t.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan device token row", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating device token rows", err)
	}

	return tokens, nil
}

// DeleteTokens removes dead tokens reported by the push gateway.
func (r *DeviceTokenRepository) DeleteTokens(ctx context.Context, tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM device_tokens WHERE token = ANY($1)`,
		tokens,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete device tokens", err)
	}
	return int(tag.RowsAffected()), nil
}
