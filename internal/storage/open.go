package storage

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Open returns the DocumentStore selected by backend.
func Open(ctx context.Context, backend, dataDir, postgresDSN string) (DocumentStore, error) {
	switch backend {
	case BackendSQLite, "":
		return OpenSQLite(dataDir)
	case BackendPostgres:
		if postgresDSN == "" {
			return nil, fmt.Errorf("storage backend %q requires storage.postgres_dsn (BRANDFLOW_STORAGE_POSTGRES_DSN)", backend)
		}
		return OpenPostgres(ctx, postgresDSN)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want sqlite, postgres or memory)", backend)
	}
}
