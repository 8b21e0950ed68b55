package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/relaypack/bupcask/internal/objstore"
	"github.com/relaypack/bupcask/internal/termcolor"
	"github.com/relaypack/bupcask/internal/vfs"
)

func runLs(store *objstore.DiskStore, args []string, cw *termcolor.Writer) int {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	root := vfs.NewRoot(store)
	node, err := vfs.Resolve(root, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bup ls: %v\n", err)
		return 1
	}

	subs, err := node.Subs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "bup ls: %v\n", err)
		return 1
	}

	names := make([]string, len(subs))
	byName := make(map[string]vfs.Node, len(subs))
	for i, n := range subs {
		names[i] = n.Name()
		byName[n.Name()] = n
	}
	sort.Strings(names)

	for _, name := range names {
		n := byName[name]
		switch n.Kind() {
		case vfs.KindDir:
			fmt.Println(cw.BoldCyan(name + "/"))
		case vfs.KindSymlink:
			fmt.Println(cw.Yellow(name + "@"))
		default:
			fmt.Println(name)
		}
	}

	return 0
}
