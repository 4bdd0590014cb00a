package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/lead-engine/internal/db"
	"github.com/jonathan/lead-engine/internal/observability"
	"github.com/jonathan/lead-engine/internal/pipeline"
	"github.com/jonathan/lead-engine/internal/stream"
	"github.com/jonathan/lead-engine/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run the lead pipeline for a search query",
	Long: `Search job postings and turn each hiring company into a lead with contacts and a drafted email.

By default the pipeline runs in-process against the configured store. With --server the query is sent
to a running lead_engine API and its event stream is printed as it arrives.`,
	RunE: runGenerate,
}

var (
	genTitles       []string
	genNumJobs      int
	genLocations    []string
	genIndustries   []string
	genKeywords     []string
	genSizes        []string
	genRoles        []string
	genSessionTitle string
	genServer       string
	genToken        string
	genOut          string
	genRaw          bool
	genStrict       bool
	genVerbose      bool
)

func init() {
	generateCmd.Flags().StringSliceVarP(&genTitles, "title", "t", nil, "Job title to search for (repeatable)")
	generateCmd.Flags().IntVarP(&genNumJobs, "num", "n", 0, "Number of postings to process (default 10)")
	generateCmd.Flags().StringSliceVar(&genLocations, "location", nil, "Location filter (repeatable)")
	generateCmd.Flags().StringSliceVar(&genIndustries, "industry", nil, "Industry filter (repeatable)")
	generateCmd.Flags().StringSliceVar(&genKeywords, "keyword", nil, "Keyword filter (repeatable)")
	generateCmd.Flags().StringSliceVar(&genSizes, "size", nil, "Company size filter: small, mid or large (repeatable)")
	generateCmd.Flags().StringSliceVar(&genRoles, "role", nil, "Point-of-contact role to look for (repeatable)")
	generateCmd.Flags().StringVar(&genSessionTitle, "session-title", "", "Title of the session created for the run")
	generateCmd.Flags().StringVar(&genServer, "server", "", "Base URL of a lead_engine server to run on instead of locally")
	generateCmd.Flags().StringVar(&genToken, "token", "", "Bearer token for --server (defaults to LEAD_ENGINE_TOKEN)")
	generateCmd.Flags().StringVarP(&genOut, "out", "o", "", "Write the generated leads to this JSON file")
	generateCmd.Flags().BoolVar(&genRaw, "raw", false, "Print events as NDJSON instead of formatted lines")
	generateCmd.Flags().BoolVar(&genStrict, "strict", false, "With --server, drop events that do not match the event schema")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "Print every lead with its contacts and draft")

	_ = generateCmd.MarkFlagRequired("title")
	rootCmd.AddCommand(generateCmd)
}

func buildQuery() types.SearchQuery {
	return types.SearchQuery{
		SessionTitle: genSessionTitle,
		JobTitles:    genTitles,
		NumJobs:      genNumJobs,
		Locations:    genLocations,
		Industries:   genIndustries,
		Keywords:     genKeywords,
		CompanySizes: genSizes,
		POCRoles:     genRoles,
	}
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	q := buildQuery()

	var (
		progress *stream.Progress
		err      error
	)
	if genServer != "" {
		token := genToken
		if token == "" {
			token = os.Getenv("LEAD_ENGINE_TOKEN")
		}
		client := &stream.Client{BaseURL: genServer, Token: token, Strict: genStrict}
		progress, err = generateRemote(ctx, client, q, out)
	} else {
		progress, err = generateLocal(ctx, q, out)
	}
	if progress != nil && genOut != "" && progress.CanExport() {
		if writeErr := writeLeads(genOut, progress.Leads); writeErr != nil {
			return errors.Join(err, writeErr)
		}
		fmt.Fprintf(out, "Wrote %d leads to %s\n", len(progress.Leads), genOut)
	}
	return err
}

// generateLocal runs the pipeline in-process, persisting to the configured store and
// finishing the session the way the server does.
func generateLocal(ctx context.Context, q types.SearchQuery, out io.Writer) (*stream.Progress, error) {
	cfg, logger, err := loadEnv()
	if err != nil {
		return nil, err
	}
	defer func() { _ = logger.Sync() }()

	q = q.Normalize(time.Now())
	if err := q.Validate(cfg.SearchMaxResults); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	publisher, err := buildPublisher(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = publisher.Close() }()

	pipe, err := buildPipeline(cfg, store, publisher, logger)
	if err != nil {
		return nil, err
	}

	session := &types.Session{Title: q.SessionTitle, Query: q}
	if err := store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	fmt.Fprintf(out, "Session %s\n", session.ID)

	progress, outcome, runErr := consume(pipe.Run(ctx, session.ID, q), out)
	finishLocalSession(ctx, store, session, outcome, logger)
	return progress, runErr
}

func finishLocalSession(ctx context.Context, store db.Store, session *types.Session, outcome pipeline.Outcome, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := store.FinishSession(ctx, session.ID, outcome.SessionStatus()); err != nil {
		logger.Error("failed to finish session", zap.Error(err))
	}
	if _, err := store.RecomputeSessionCounters(ctx, session.ID); err != nil {
		logger.Error("failed to recompute session counters", zap.Error(err))
	}
}

// generateRemote starts the run on a server and prints its stream.
func generateRemote(ctx context.Context, client *stream.Client, q types.SearchQuery, out io.Writer) (*stream.Progress, error) {
	run, err := client.Generate(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = run.Close() }()

	progress, _, runErr := consume(run.All(), out)
	if err := run.Err(); err != nil && runErr == nil {
		runErr = fmt.Errorf("stream interrupted: %w", err)
	}
	if skipped := run.Skipped(); skipped > 0 {
		fmt.Fprintf(out, "Skipped %d malformed stream lines\n", skipped)
	}
	return progress, runErr
}

// consume prints every event and returns the derived client state. The error is
// non-nil when the run did not complete.
func consume(events iter.Seq[pipeline.Event], out io.Writer) (*stream.Progress, pipeline.Outcome, error) {
	printer := observability.NewPrinter(out, genVerbose)
	progress := &stream.Progress{}
	progress.Start()

	var (
		outcome  pipeline.Outcome
		lastErr  string
		writeErr error
	)
	for ev := range events {
		outcome.Observe(ev)
		progress.Apply(ev)
		if e, ok := ev.(pipeline.Error); ok && e.Fatal {
			lastErr = e.Message
		}
		if genRaw {
			writeErr = writeRaw(out, ev)
			if writeErr != nil {
				break
			}
			continue
		}
		printer.PrintEvent(ev)
	}
	progress.Finish()

	switch {
	case writeErr != nil:
		return progress, outcome, writeErr
	case outcome.Fatal:
		return progress, outcome, fmt.Errorf("run failed: %s", lastErr)
	case !outcome.Completed:
		return progress, outcome, errors.New("run ended before completion")
	}
	return progress, outcome, nil
}

func writeRaw(out io.Writer, ev pipeline.Event) error {
	data, err := pipeline.Encode(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

func writeLeads(path string, leads []types.Lead) error {
	data, err := json.MarshalIndent(leads, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode leads: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
