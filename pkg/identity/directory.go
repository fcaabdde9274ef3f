// Package identity holds the collaborators the access-control core is
// wired to at startup: the user directory used to enrich member lists
// with display fields, and the platform-admin bypass strategy.
package identity

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// User is a directory record with display fields only. Authentication
// happens upstream; this package never sees credentials.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// Directory batch-resolves user display records by id.
type Directory interface {
	// UsersByIDs fetches the given users in one query. Missing ids are
	// simply absent from the result map.
	UsersByIDs(ctx context.Context, ids []int64) (map[int64]*User, error)
}

// SQLDirectory is a Directory over the users table with an LRU cache of
// display records. Display data only is cached, never access decisions:
// membership revocation stays immediate.
type SQLDirectory struct {
	db    *sql.DB
	cache *lru.Cache[int64, *User]
}

// NewSQLDirectory creates a directory with a cache of the given size.
func NewSQLDirectory(db *sql.DB, cacheSize int) (*SQLDirectory, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[int64, *User](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory cache: %w", err)
	}
	return &SQLDirectory{db: db, cache: cache}, nil
}

// UsersByIDs resolves users, serving cached records and batch-fetching
// only the misses.
func (d *SQLDirectory) UsersByIDs(ctx context.Context, ids []int64) (map[int64]*User, error) {
	result := make(map[int64]*User, len(ids))
	var misses []int64
	seen := make(map[int64]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := d.cache.Get(id); ok {
			result[id] = u
		} else {
			misses = append(misses, id)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(misses))
	args := make([]interface{}, len(misses))
	for i, id := range misses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(
		`SELECT id, username, email, full_name FROM users WHERE id IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-fetch users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u := &User{}
		var email, fullName sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &email, &fullName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if email.Valid {
			u.Email = email.String
		}
		if fullName.Valid {
			u.FullName = fullName.String
		}
		result[u.ID] = u
		d.cache.Add(u.ID, u)
	}
	return result, rows.Err()
}

// Invalidate drops a user from the cache, for callers that update
// profiles in place.
func (d *SQLDirectory) Invalidate(id int64) {
	d.cache.Remove(id)
}
