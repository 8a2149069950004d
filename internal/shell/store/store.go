package store

import (
	"context"

	"github.com/arrstack/arrstack/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store provides access to the persisted configuration documents. There is
// one record of each kind; readers get ErrNotFound until the first save.
type Store interface {
	// Base configuration.
	GetBaseConfig(ctx context.Context) (domain.BaseConfig, error)
	SaveBaseConfig(ctx context.Context, cfg domain.BaseConfig) error

	// Service selection.
	GetSelection(ctx context.Context) (domain.SelectionState, error)
	SaveSelection(ctx context.Context, sel domain.SelectionState) error

	// Installation status.
	GetInstallStatus(ctx context.Context) (domain.InstallStatus, error)
	SaveInstallStatus(ctx context.Context, st domain.InstallStatus) error

	// WithTx runs fn inside a transaction. The Store passed to fn operates
	// on the transaction; a returned error rolls everything back.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close releases the underlying connection.
	Close() error
}
