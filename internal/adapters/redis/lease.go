package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/target/integrations-dispatch/internal/ports"
)

// DefaultLeaderKey is the key scheduler replicas contend on.
const DefaultLeaderKey = "dispatch:scheduler:leader"

// acquireLease sets the key when free and extends it when this holder owns it.
var acquireLease = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
  return 1
end
if cur == ARGV[1] then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
  return 1
end
return 0
`)

var releaseLease = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`)

var _ ports.LeaderLease = (*Lease)(nil)

// LeaseOptions configures Lease.
type LeaseOptions struct {
	Client redis.UniversalClient // Required
	TTL    time.Duration         // Required: how long leadership survives without renewal
	Key    string                // Optional: defaults to DefaultLeaderKey
	Holder string                // Optional: defaults to hostname plus a random suffix
	Logger *slog.Logger
}

// Lease is a single-key leader lease. Acquire both takes and renews it.
type Lease struct {
	client redis.UniversalClient
	key    string
	holder string
	ttl    time.Duration
	logger *slog.Logger
}

// NewLease validates opts and builds the lease.
func NewLease(opts LeaseOptions) (*Lease, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.TTL < time.Millisecond {
		return nil, fmt.Errorf("lease ttl must be at least 1ms, got %v", opts.TTL)
	}
	key := opts.Key
	if key == "" {
		key = DefaultLeaderKey
	}
	holder := opts.Holder
	if holder == "" {
		host, _ := os.Hostname()
		holder = host + "-" + uuid.NewString()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Lease{
		client: opts.Client,
		key:    key,
		holder: holder,
		ttl:    opts.TTL,
		logger: logger.With("component", "leader_lease", "holder", holder),
	}, nil
}

// Holder identifies this instance in the lease value.
func (l *Lease) Holder() string { return l.holder }

// Acquire implements ports.LeaderLease.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	res, err := acquireLease.Run(ctx, l.client, []string{l.key}, l.holder, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis lease acquire: %w", err)
	}
	return res == 1, nil
}

// Release implements ports.LeaderLease. Releasing a lease held elsewhere is a no-op.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseLease.Run(ctx, l.client, []string{l.key}, l.holder).Int()
	if err != nil {
		return fmt.Errorf("redis lease release: %w", err)
	}
	if n > 0 {
		l.logger.InfoContext(ctx, "scheduler lease released")
	}
	return nil
}
