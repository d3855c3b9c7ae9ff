package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
)

// ReconcileJournal replays every journaled completion through client once. Entries
// whose replay succeeds are deleted; the rest stay for the next run.
func ReconcileJournal(
	ctx context.Context,
	client ports.DispatchClient,
	journal ports.CompletionJournal,
	logger *slog.Logger,
) (model.ReconcileResult, error) {
	var res model.ReconcileResult
	if client == nil || journal == nil {
		return res, errors.New("client and journal are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "reconcile")

	entries, err := journal.List(ctx)
	if err != nil {
		return res, err
	}

	for _, e := range entries {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if cerr := client.Complete(ctx, e.JobID, e.CompleteRequest()); cerr != nil {
			res.Failed++
			logger.WarnContext(ctx, "replay failed", "entry_id", e.ID, "job_id", e.JobID, "error", cerr)
			continue
		}
		if derr := journal.Delete(ctx, e.ID); derr != nil {
			res.Failed++
			logger.ErrorContext(ctx, "delete replayed entry", "entry_id", e.ID, "error", derr)
			continue
		}
		res.Replayed++
		logger.InfoContext(ctx, "completion replayed", "entry_id", e.ID, "job_id", e.JobID, "status", e.Status)
	}
	return res, nil
}
