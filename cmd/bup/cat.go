package main

import (
	"fmt"
	"os"

	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/termcolor"
	"github.com/relaypack/bupcask/internal/vfs"
)

func runCat(store *objstore.DiskStore, args []string, _ *termcolor.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: bup cat <path>")
		return 1
	}

	root := vfs.NewRoot(store)
	node, err := vfs.Resolve(root, args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "bup cat: %v\n", err)
		return 1
	}

	reader, err := node.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bup cat: %v\n", err)
		return 1
	}
	defer reader.Close()

	data, err := reader.Read(-1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bup cat: %v\n", err)
		return 1
	}
	if _, err := os.Stdout.Write(data); err != nil {
		fmt.Fprintf(os.Stderr, "bup cat: %v\n", err)
		return 1
	}

	return 0
}
