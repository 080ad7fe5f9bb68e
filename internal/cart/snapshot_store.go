package cart

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNoSnapshot is returned by Load when no snapshot has been saved yet.
var ErrNoSnapshot = errors.New("no cart snapshot")

// SnapshotStore is the durable home of the cart snapshot. Writes are
// synchronous; the Store calls Save inside every mutating operation.
type SnapshotStore interface {
	Initialize(ctx context.Context) error

	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error

	Ping(ctx context.Context) bool
}
