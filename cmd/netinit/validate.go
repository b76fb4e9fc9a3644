package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"dronenet/internal/codec"
	"dronenet/internal/domain"
	"dronenet/internal/loader"
	"dronenet/internal/topology"
	"dronenet/internal/watcher"
)

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	watch := fs.Bool("watch", false, "re-validate whenever the file changes")
	convert := fs.String("convert", "", "write the normalized topology to stdout in this format (toml, yaml, json)")
	logLevel := fs.String("log-level", "info", "log level")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: netinit validate [-watch] [-convert format] <topology file>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one topology file")
	}
	path := fs.Arg(0)

	var exporter codec.Exporter
	if *convert != "" {
		c, err := codec.ForFormat(*convert)
		if err != nil {
			return err
		}
		exporter = c
	}

	if !*watch {
		return checkTopology(path, os.Stdout, exporter)
	}

	logger, err := newLogger(os.Stderr, *logLevel, "text")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recheck := func(string) {
		if err := checkTopology(path, os.Stdout, exporter); err != nil {
			fmt.Fprintln(os.Stdout, err)
		}
	}
	recheck(path)

	w := watcher.New(path, recheck).WithLogger(logrus.NewEntry(logger))
	if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// checkTopology loads and validates the file at path and reports the result
// to out. The error carries the reason the topology was rejected.
func checkTopology(path string, out io.Writer, exporter codec.Exporter) error {
	t, err := loader.LoadFile(path)
	if err != nil {
		return err
	}
	if err := topology.Validate(t); err != nil {
		return fmt.Errorf("%s: invalid topology (%s): %w", path, topology.Reason(err), err)
	}

	if exporter != nil {
		return exporter.Export(t, out)
	}

	fmt.Fprintf(out, "%s: ok, %d drones, %d clients, %d servers, %d links, digest %s\n",
		path, len(t.Drones), len(t.Clients), len(t.Servers), t.EdgeCount(), domain.Digest(t)[:12])
	return nil
}
