// Command arhfs reads and writes ARH/ARD archive pairs: the metadata file
// (path trie, string table, file table) and its accompanying data file.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tesshu/arhfs"
)

var debug = flag.Bool("debug", false, "format error messages with additional detail")

type cmd struct {
	fn func(ctx context.Context, args []string) error
}

func funcmain() error {
	flag.Parse()

	verbs := map[string]cmd{
		"ls":     {cmdLs},
		"stat":   {cmdStat},
		"cat":    {cmdCat},
		"add":    {cmdAdd},
		"rm":     {cmdRm},
		"mv":     {cmdMv},
		"commit": {cmdCommit},
		"fsck":   {cmdFsck},
		"export": {cmdExport},
		"fuse":   {cmdFuse},
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "syntax: arhfs <command> -arh <arh-path> [options] [args...]")
		fmt.Fprintln(os.Stderr, "commands: ls, stat, cat, add, rm, mv, commit, fsck, export, fuse")
		os.Exit(2)
	}
	verb, args := args[0], args[1:]

	ctx, canc := arhfs.InterruptibleContext()
	defer canc()

	v, ok := verbs[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", verb)
		os.Exit(2)
	}
	if err := v.fn(ctx, args); err != nil {
		if *debug {
			return fmt.Errorf("%s: %+v", verb, err)
		}
		return fmt.Errorf("%s: %v", verb, err)
	}
	return arhfs.RunAtExit()
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
