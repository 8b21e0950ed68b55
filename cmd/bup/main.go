// Package main is the entry point for bup, the bupcask CLI.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/relaypack/bupcask/internal/cli"
	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("bup", version)
	app.Stderr = os.Stderr

	// store is declared here and assigned after dispatch determines the
	// matched command needs it (NeedsRepo); closures capture the pointer
	// variable, populated before they execute.
	var store *objstore.DiskStore

	app.Register(&cli.Command{
		Name:      "gc",
		Summary:   "Reclaim pack space from unreachable objects",
		Usage:     "bup gc [-v] [--threshold PERCENT] [--compress LEVEL]",
		Examples:  []string{"bup gc", "bup gc --threshold 20 --compress 9"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runGC(store, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "ls",
		Summary:   "List a VFS directory",
		Usage:     "bup ls [PATH]",
		Examples:  []string{"bup ls", "bup ls .commit/a1/2345.../file.txt"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runLs(store, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "cat",
		Summary:   "Print a VFS file's contents",
		Usage:     "bup cat PATH",
		Examples:  []string{"bup cat .commit/a1/2345.../README.md"},
		NeedsRepo: true,
		Run:       func(args []string) int { return runCat(store, args, cw) },
	})

	app.Register(&cli.Command{
		Name:      "check",
		Summary:   "Verify every reachable object is retrievable",
		Usage:     "bup check",
		NeedsRepo: true,
		Run:       func(args []string) int { return runCheck(store, args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "bup version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	if len(args) > 0 {
		cmd := app.Lookup(args[0])
		if cmd != nil && cmd.NeedsRepo {
			var err error
			store, err = objstore.Open(gf.repoPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
				os.Exit(128)
			}
		}
	}

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("bup %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
