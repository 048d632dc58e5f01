package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/synthbot/core/logger"
)

// Lookup reports whether a user is on the whitelist.
type Lookup interface {
	Contains(ctx context.Context, userID int64) (bool, error)
}

// Authorizer admits admins unconditionally and everyone else only when the
// whitelist is enabled and contains them.
type Authorizer struct {
	list    Lookup
	isAdmin func(int64) bool
	enabled bool
}

// NewAuthorizer builds an Authorizer. With enabled false every user is admitted.
func NewAuthorizer(list Lookup, isAdmin func(int64) bool, enabled bool) *Authorizer {
	return &Authorizer{list: list, isAdmin: isAdmin, enabled: enabled}
}

// Check returns an error matching ErrUnauthorized when userID may not use the
// bot. Lookup failures are returned as they are.
func (a *Authorizer) Check(ctx context.Context, userID int64) error {
	if !a.enabled {
		return nil
	}
	if a.isAdmin != nil && a.isAdmin(userID) {
		return nil
	}
	if a.list != nil {
		ok, err := a.list.Contains(ctx, userID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", userID, ErrUnauthorized)
}

// Allowed implements the middleware Authorizer contract.
func (a *Authorizer) Allowed(ctx context.Context, userID int64) (bool, error) {
	err := a.Check(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

// Seeder adds configured admins to the whitelist at startup.
type Seeder struct {
	list     *Whitelist
	adminIDs []int64
}

// NewSeeder constructs a Seeder.
func NewSeeder(list *Whitelist, adminIDs []int64) *Seeder {
	return &Seeder{list: list, adminIDs: adminIDs}
}

// Seed inserts missing admins. Existing entries are left alone.
func (s *Seeder) Seed(ctx context.Context) error {
	added := 0
	for _, id := range s.adminIDs {
		err := s.list.Add(ctx, id, id, "admin")
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrAlreadyListed):
		default:
			return err
		}
	}
	logger.Info(ctx, "db.seed", "whitelist.seed",
		slog.String("status", "ok"),
		slog.Int("count", added),
	)
	return nil
}
