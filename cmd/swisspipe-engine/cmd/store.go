package cmd

import (
	"context"
	"fmt"

	"github.com/openobserve/swisspipe-engine/pkg/store"
	"github.com/openobserve/swisspipe-engine/pkg/store/memstore"
	"github.com/openobserve/swisspipe-engine/pkg/store/mysql"
	"github.com/openobserve/swisspipe-engine/pkg/store/postgres"
	"github.com/openobserve/swisspipe-engine/pkg/store/sqlite"
)

// openStore dispatches cfg.StoreDriver to the matching backend
// constructor, which bootstraps its own schema on connect (spec §4.1:
// the claim protocol is specified abstractly enough to run against
// SQLite, MySQL, or PostgreSQL). The returned close func is non-nil
// whenever err is nil.
func openStore(ctx context.Context) (store.Store, func() error, error) {
	switch cfg.StoreDriver {
	case "mysql":
		s, err := mysql.Open(cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql store: %w", err)
		}
		return s, s.Close, nil
	case "postgres":
		s, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, func() error { s.Close(); return nil }, nil
	case "memory":
		return memstore.New(), func() error { return nil }, nil
	case "sqlite", "":
		s, err := sqlite.Open(cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
