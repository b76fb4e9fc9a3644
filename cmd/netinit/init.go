package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"dronenet/internal/config"
)

type initOptions struct {
	path     string
	topology string
	force    bool
}

func initCommand(args []string) error {
	var opts initOptions

	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	flags.StringVar(&opts.path, "config", "", "where to write the config (default: next to the topology, else the user config dir)")
	flags.StringVar(&opts.topology, "topology", "", "topology file the config points at")
	flags.BoolVar(&opts.force, "force", false, "overwrite an existing config")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 1 && opts.topology == "" {
		opts.topology = flags.Arg(0)
	}

	path, err := writeDefaultConfig(opts)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// writeDefaultConfig saves the default config and returns where it went
func writeDefaultConfig(opts initOptions) (string, error) {
	path := opts.path
	if path == "" {
		path = config.DefaultConfigPath(opts.topology)
	}

	if !opts.force {
		if _, err := os.Stat(path); err == nil {
			return path, fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return path, err
		}
	}

	cfg := config.DefaultConfig()
	if opts.topology != "" {
		abs, err := filepath.Abs(opts.topology)
		if err != nil {
			return path, err
		}
		cfg.Topology.Path = abs
	}
	if err := cfg.Validate(); err != nil {
		return path, err
	}
	if err := cfg.Save(path); err != nil {
		return path, err
	}
	return path, nil
}
