package bootstrap

import "context"

// Seeder loads reference data once migrations have run. Seeders must be
// idempotent since they run on every start.
type Seeder interface {
	Seed(ctx context.Context) error
}

// SeederFunc lets a plain function act as a Seeder.
type SeederFunc func(ctx context.Context) error

func (f SeederFunc) Seed(ctx context.Context) error { return f(ctx) }
