package ports

import (
	"context"

	"github.com/target/integrations-dispatch/internal/domain/model"
)

// RateLimiter decides whether a keyed action may proceed now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// LeaderLease grants exclusive leadership among scheduler replicas.
type LeaderLease interface {
	// Acquire obtains or renews the lease and reports whether this instance holds it.
	Acquire(ctx context.Context) (bool, error)
	// Release gives the lease up if this instance holds it.
	Release(ctx context.Context) error
}

// CompletionJournal keeps completions the dispatch API did not accept so an
// operator can replay them.
type CompletionJournal interface {
	Record(ctx context.Context, entry model.JournalEntry) error
	List(ctx context.Context) ([]model.JournalEntry, error)
	Delete(ctx context.Context, id string) error
}
