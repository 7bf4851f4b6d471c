// Package layer defines the output layer contract: an accumulating store of
// parcel features keyed by national reference, written one scoped
// transaction per feature.
package layer

import (
	"context"

	"github.com/pigreco/download-ple-x-attributo-WFS-AdE/internal/core/model"
)

// Tx scopes the write of a single feature. Every exit path must end in
// Commit or Rollback; a crash mid-batch never corrupts features committed
// earlier.
type Tx interface {
	Add(f model.ParcelFeature) error
	Commit() error
	Rollback() error
}

// Store is an output layer. ExistingRefs seeds deduplication when appending
// to a pre-existing layer.
type Store interface {
	ExistingRefs(ctx context.Context) (map[string]struct{}, error)
	Begin(ctx context.Context) (Tx, error)
	Close() error
}
