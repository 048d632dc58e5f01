// Package access decides who may talk to the bot.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/synthbot/core/logger"
)

var (
	// ErrUnauthorized is returned when a user is neither whitelisted nor an admin.
	ErrUnauthorized = errors.New("access: unauthorized")
	// ErrAlreadyListed is returned by Add for a user already on the whitelist.
	ErrAlreadyListed = errors.New("access: user already whitelisted")
	// ErrNotListed is returned by Remove for a user missing from the whitelist.
	ErrNotListed = errors.New("access: user not whitelisted")
)

// Entry is one whitelisted user.
type Entry struct {
	UserID    int64     `db:"user_id"`
	AddedBy   int64     `db:"added_by"`
	Note      string    `db:"note"`
	CreatedAt time.Time `db:"created_at"`
}

// Whitelist stores the users allowed to use the bot.
type Whitelist struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewWhitelist constructs a Whitelist over db.
func NewWhitelist(db *sqlx.DB) *Whitelist {
	return &Whitelist{db: db, now: time.Now}
}

// Contains reports whether userID is whitelisted.
func (w *Whitelist) Contains(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := w.db.GetContext(ctx, &one, w.db.Rebind(`SELECT 1 FROM whitelist WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("whitelist lookup: %w", err)
	}
	return true, nil
}

// Add whitelists userID. Adding an existing user returns ErrAlreadyListed.
func (w *Whitelist) Add(ctx context.Context, userID, addedBy int64, note string) error {
	res, err := w.db.ExecContext(ctx, w.db.Rebind(`
		INSERT INTO whitelist (user_id, added_by, note, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO NOTHING
	`), userID, addedBy, note, w.now().UTC())
	if err != nil {
		return fmt.Errorf("whitelist add: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyListed
	}
	logger.Info(ctx, "service.access", "whitelist.add",
		slog.String("status", "ok"),
		slog.Int64("target_user_id", userID),
		slog.Int64("added_by", addedBy),
	)
	return nil
}

// Remove deletes userID from the whitelist.
func (w *Whitelist) Remove(ctx context.Context, userID int64) error {
	res, err := w.db.ExecContext(ctx, w.db.Rebind(`DELETE FROM whitelist WHERE user_id = ?`), userID)
	if err != nil {
		return fmt.Errorf("whitelist remove: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("whitelist remove: %w", err)
	}
	if n == 0 {
		return ErrNotListed
	}
	logger.Info(ctx, "service.access", "whitelist.remove",
		slog.String("status", "ok"),
		slog.Int64("target_user_id", userID),
	)
	return nil
}

// List returns every entry, oldest first.
func (w *Whitelist) List(ctx context.Context) ([]Entry, error) {
	var out []Entry
	if err := w.db.SelectContext(ctx, &out, `SELECT user_id, added_by, note, created_at FROM whitelist ORDER BY created_at ASC, user_id ASC`); err != nil {
		return nil, fmt.Errorf("whitelist list: %w", err)
	}
	return out, nil
}
