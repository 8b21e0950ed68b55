package main

import (
	"flag"
	"fmt"
	"os"
	"sync"

	"github.com/pterm/pterm"
	"github.com/relaypack/bupcask/internal/gc"
	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/progress"
	"github.com/relaypack/bupcask/internal/termcolor"
)

// verboseCount implements flag.Value so -v/--verbose accumulate across
// repeated occurrences, the same "cumulative log verbosity" §6 specifies.
type verboseCount int

func (v *verboseCount) String() string { return fmt.Sprintf("%d", int(*v)) }
func (v *verboseCount) Set(string) error {
	*v++
	return nil
}

func runGC(store *objstore.DiskStore, args []string, cw *termcolor.Writer) int {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var verbose verboseCount
	fs.Var(&verbose, "v", "cumulative log verbosity")
	fs.Var(&verbose, "verbose", "cumulative log verbosity")
	threshold := fs.Int("threshold", 10, "integer 0-100; rewrite a pack when at most (100-N)% is live")
	compress := fs.Int("compress", 1, "zlib compression level 0-9")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	packsTotal := len(store.PackIndices())

	spin := progress.New("Building live object set...")
	spin.Start()

	var bar *pterm.ProgressbarPrinter
	var startBarOnce sync.Once
	startBar := func() {
		spin.Stop()
		if packsTotal == 0 {
			return
		}
		b, err := pterm.DefaultProgressbar.WithTotal(packsTotal).WithTitle("Sweeping packs").Start()
		if err == nil {
			bar = b
		}
	}

	opts := gc.Options{
		Threshold:     *threshold,
		CompressLevel: *compress,
		Verbose:       int(verbose),
		OnPackSwept: func(r gc.PackResult) {
			startBarOnce.Do(startBar)
			if bar != nil {
				bar.Increment()
			}
			if verbose > 0 {
				fmt.Printf("%-8s %s (%d/%d live)\n", cw.Yellow(r.Decision.String()), r.Path, r.Live, r.Total)
			}
		},
	}

	report, err := gc.Run(store, opts)
	startBarOnce.Do(startBar) // stops the spinner even when zero packs exist
	if bar != nil {
		bar.Stop()
	}

	if report == nil {
		fmt.Fprintf(os.Stderr, "gc: %v\n", err)
		return 1
	}

	fmt.Printf("%s %d -> %d objects (%.1f%% discarded)\n",
		cw.Bold("gc:"), report.ObjectsBefore, report.ObjectsAfter, report.PercentDiscarded)

	if err != nil || report.Errors > 0 {
		fmt.Fprintln(os.Stderr, cw.Red(fmt.Sprintf("gc: %d error(s) occurred during sweep", report.Errors)))
		return 1
	}

	return 0
}
