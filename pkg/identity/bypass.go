package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// PlatformBypass implements the resolver's global bypass strategy over
// the platform_admins table. Lookups are deliberately uncached so that
// revoking platform access takes effect on the next request.
type PlatformBypass struct {
	db *sql.DB
}

// NewPlatformBypass creates the bypass strategy.
func NewPlatformBypass(db *sql.DB) *PlatformBypass {
	return &PlatformBypass{db: db}
}

// HasGlobalAccess reports whether the user is a platform admin.
func (b *PlatformBypass) HasGlobalAccess(ctx context.Context, userID int64) (bool, error) {
	name, err := b.globalRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return name != "", nil
}

// GlobalRoleName returns the user's platform role name for audit
// display, or "" when the user has none.
func (b *PlatformBypass) GlobalRoleName(ctx context.Context, userID int64) (string, error) {
	return b.globalRole(ctx, userID)
}

func (b *PlatformBypass) globalRole(ctx context.Context, userID int64) (string, error) {
	var name string
	err := b.db.QueryRowContext(ctx,
		`SELECT global_role FROM platform_admins WHERE user_id = $1`, userID,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up platform role: %w", err)
	}
	return name, nil
}
