// Command netinit builds a simulated drone network from a topology file,
// spawns one goroutine per node and acts as its controller.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "init":
		err = initCommand(args)
	case "validate":
		err = validateCommand(args)
	case "run":
		err = runCommand(args)
	case "runs":
		err = runsCommand(args)
	case "variants":
		err = variantsCommand(args)
	case "help", "--help", "-h":
		printUsage()
	case "version", "--version", "-v":
		fmt.Printf("netinit %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "netinit %s: %v\n", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	usage := `netinit - drone network initializer

Usage:
  netinit <command> [options]

Available Commands:
  init        Write a default config file
  validate    Check a topology file, optionally re-checking on every save
  run         Start the network described by a topology and control it
  runs        List recorded runs
  variants    List registered node implementations
  help        Show this help message
  version     Show version information

Use "netinit <command> -h" for more information about a command.
`
	fmt.Print(usage)
}
