package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lease is a best-effort advisory lock backed by SETNX. It keeps overlapping
// external triggers from draining the same queue twice; losing it only costs
// duplicate sends, which dispatch already tolerates.
type Lease struct {
	client *Client
	key    string
	token  string
}

// AcquireLease tries to take the named lease for the given TTL. The boolean
// reports whether the caller holds the lease.
func (c *Client) AcquireLease(ctx context.Context, scope string, ttl time.Duration) (*Lease, bool, error) {
	key := c.LockKey(scope)
	token := uuid.NewString()
	ok, err := c.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &Lease{client: c, key: key, token: token}, true, nil
}

// Release drops the lease. Releasing an expired lease is a no-op; a lease
// taken over by another holder is left alone. The token check and the delete
// run atomically on the server.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.compareAndDelete(ctx, l.key, l.token)
}
