package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"dronenet/internal/config"
	"dronenet/internal/domain"
	"dronenet/internal/repository"
	"dronenet/internal/repository/sqlite"
)

func runsCommand(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", config.DefaultDatabasePath, "run ledger database")
	limit := fs.Int("limit", 20, "number of runs to show, newest first")
	detail := fs.String("show", "", "print node exits and event counts of one run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*dbPath); err != nil {
		return fmt.Errorf("no ledger at %s", *dbPath)
	}
	repo, err := sqlite.New(*dbPath)
	if err != nil {
		return err
	}
	defer repo.Close()

	ctx := context.Background()
	if *detail != "" {
		return printRun(ctx, repo, *detail, os.Stdout)
	}

	runs, err := repo.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	printRuns(runs, os.Stdout)
	return nil
}

func printRuns(runs []*repository.Run, out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tDURATION\tNODES\tSTATUS\tTOPOLOGY")
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			run.ID, run.StartedAt.Local().Format(time.DateTime), duration, run.Nodes, run.Status, run.TopologyPath)
	}
	w.Flush()
}

func printRun(ctx context.Context, ledger repository.Ledger, id string, out io.Writer) error {
	run, err := ledger.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	exits, err := ledger.ListNodeExits(ctx, id)
	if err != nil {
		return err
	}
	counts, err := ledger.CountEvents(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s)\n", run.ID, run.Status)
	fmt.Fprintf(out, "Topology: %s, digest %s\n", run.TopologyPath, run.TopologyDigest)

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%d", kind, counts[domain.EventKind(kind)]))
	}
	fmt.Fprintf(out, "Events: %s\n\n", strings.Join(parts, " "))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NODE\tKIND\tVARIANT\tOUTCOME\tLIFETIME\tERROR")
	for _, exit := range exits {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			exit.Node, exit.Kind, exit.Variant, exit.Outcome, exit.Duration.Round(time.Millisecond), exit.Error)
	}
	return w.Flush()
}
