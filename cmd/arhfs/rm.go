package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const rmHelp = `arhfs rm [-flags] <archive-path>

Remove archive-path, freeing its data blocks and file id, then commit the
archive in place.
`

func cmdRm(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("rm", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, rmHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if fset.NArg() != 1 {
		fset.Usage()
		os.Exit(2)
	}

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Unlink(fset.Arg(0)); err != nil {
		return err
	}
	return a.Commit(*arhPath)
}
