package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"dronenet/internal/node"
	"dronenet/internal/registry"
)

func variantsCommand(args []string) error {
	fs := flag.NewFlagSet("variants", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := registry.New(nil)
	if err := node.RegisterBuiltins(reg); err != nil {
		return err
	}
	return printVariants(reg, os.Stdout)
}

func printVariants(reg *registry.Registry, out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tVARIANT\tDESCRIPTION")
	for _, r := range reg.List() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Kind, r.Variant, r.Description)
	}
	return w.Flush()
}
