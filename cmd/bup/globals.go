package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/relaypack/bupcask/internal/termcolor"
)

type globalFlags struct {
	colorMode termcolor.ColorMode
	repoPath  string
}

// parseGlobalFlags extracts --color, --no-color, and --repo from anywhere in
// args, returning the parsed flags and the remaining (filtered) arguments.
func parseGlobalFlags(args []string) (globalFlags, []string) {
	gf := globalFlags{
		colorMode: termcolor.ColorAuto,
		repoPath:  getEnv("BUP_DIR", "."),
	}
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch {
		case arg == "--no-color":
			gf.colorMode = termcolor.ColorNever

		case arg == "--color" && i+1 < len(args):
			mode, err := termcolor.ParseColorMode(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "bup: %v\n", err)
				os.Exit(1)
			}
			gf.colorMode = mode
			i++

		case strings.HasPrefix(arg, "--color="):
			val := strings.TrimPrefix(arg, "--color=")
			mode, err := termcolor.ParseColorMode(val)
			if err != nil {
				fmt.Fprintf(os.Stderr, "bup: %v\n", err)
				os.Exit(1)
			}
			gf.colorMode = mode

		case arg == "--repo" && i+1 < len(args):
			gf.repoPath = args[i+1]
			i++

		case strings.HasPrefix(arg, "--repo="):
			gf.repoPath = strings.TrimPrefix(arg, "--repo=")

		default:
			remaining = append(remaining, arg)
		}
	}

	return gf, remaining
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
