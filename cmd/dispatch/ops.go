package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/target/integrations-dispatch/internal/adapters/journal"
	"github.com/target/integrations-dispatch/internal/bootstrap"
	"github.com/target/integrations-dispatch/internal/devseed"
	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
	"github.com/target/integrations-dispatch/internal/service"
)

type journalOptions struct {
	Path    string
	Timeout time.Duration
	JSON    bool
}

func parseJournalFlags(name, defaultPath string, args []string) (journalOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := journalOptions{}
	fs.StringVar(&opts.Path, "journal", defaultPath, "Report journal file (defaults to JOURNAL_PATH)")
	fs.DurationVar(&opts.Timeout, "timeout", 10*time.Minute, "Maximum duration for the command")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if err := fs.Parse(args); err != nil {
		return journalOptions{}, err
	}
	if opts.Path == "" {
		return journalOptions{}, errors.New("--journal or JOURNAL_PATH is required")
	}
	if opts.Timeout <= 0 {
		return journalOptions{}, errors.New("--timeout must be greater than zero")
	}
	return opts, nil
}

func runReconcile(cmdCtx *commandContext, args []string) error {
	opts, err := parseJournalFlags("reconcile", cmdCtx.Config.Worker.JournalPath, args)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	j, err := journal.Open(ctx, opts.Path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	client, cleanup, err := reconcileClient(cmdCtx)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := service.ReconcileJournal(ctx, client, j, cmdCtx.Logger)
	if err != nil {
		return err
	}
	if _, err = fmt.Fprintf(cmdCtx.Stdout, "replayed %d, failed %d\n", res.Replayed, res.Failed); err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d completions could not be replayed; they remain in the journal", res.Failed)
	}
	return nil
}

// reconcileClient talks to DISPATCH_API_URL when set, otherwise straight to Postgres.
//
//nolint:ireturn // the reconcile loop depends on the port.
func reconcileClient(cmdCtx *commandContext) (ports.DispatchClient, func(), error) {
	cfg := &cmdCtx.Config
	if cfg.Dispatch.Remote() {
		client, err := bootstrap.NewDispatchClient(cfg.Dispatch, nil)
		return client, func() {}, err
	}
	db, err := connectDB(cmdCtx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { closeDB(cmdCtx, db) }
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: cfg, DB: db, Logger: cmdCtx.Logger})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	client, err := bootstrap.NewDispatchClient(cfg.Dispatch, services.Dispatch)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}

func runJournalList(cmdCtx *commandContext, args []string) error {
	opts, err := parseJournalFlags("journal", cmdCtx.Config.Worker.JournalPath, args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	j, err := journal.Open(ctx, opts.Path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.List(ctx)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Stdout)
		enc.SetIndent("", "  ")
		if entries == nil {
			entries = []model.JournalEntry{}
		}
		return enc.Encode(entries)
	}
	return writeJournalTable(cmdCtx.Stdout, entries)
}

func writeJournalTable(w io.Writer, entries []model.JournalEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "journal is empty")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, "ENTRY\tJOB\tSTATUS\tRECORDED\tREASON"); err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.JobID, e.Status, e.RecordedAt.UTC().Format(time.RFC3339), e.Reason); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runSync(cmdCtx *commandContext, _ []string) error {
	if !cmdCtx.Config.Catalog.Configured() {
		return errors.New("CATALOG_URL or CATALOG_PATH is required")
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 5*time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: &cmdCtx.Config, DB: db, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	res, err := services.Catalog.Sync(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmdCtx.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runDBSeed(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(cmdCtx, db)
	return seed(ctx, cmdCtx, db)
}

func seed(ctx context.Context, cmdCtx *commandContext, db *sql.DB) error {
	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}
	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{Config: &cmdCtx.Config, DB: db, Logger: cmdCtx.Logger})
	if err != nil {
		return err
	}
	return devseed.Run(ctx, devseed.Services{
		Integrations:    services.Integrations,
		IntegrationRepo: services.Repos.Integrations,
		Deployments:     services.Deployments,
	}, cmdCtx.Logger)
}
