// Package lease provides the leader election capability for the feeds
// refresher. Exactly one replica holds the lease at a time; a deployment
// without a configured lease simply runs unconditionally.
package lease

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
)

// TTLSeconds is how long a held lease stays valid without renewal
const TTLSeconds = 120

// Lease is the distributed mutual exclusion capability.
// TryAcquireOrRenew is called once per driver tick, only true allows the
// tick to proceed. StepDown releases the lease on shutdown, best effort.
type Lease interface {
	TryAcquireOrRenew(ctx context.Context) (bool, error)
	StepDown(ctx context.Context) error
}

// holderIdentity builds the per-process holder id, lease name plus a random suffix
func holderIdentity(name string) string {
	return fmt.Sprintf("%s-%s", name, uuid.Must(uuid.NewV4()).String()[:8])
}
