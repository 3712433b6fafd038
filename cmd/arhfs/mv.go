package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tesshu/arhfs/archive"
)

const mvHelp = `arhfs mv [-flags] <old-path> <new-path>

Rename old-path to new-path within the archive, then commit in place.
`

func cmdMv(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("mv", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	replace := fset.Bool("f", false, "overwrite new-path if it already exists")
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, mvHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if fset.NArg() != 2 {
		fset.Usage()
		os.Exit(2)
	}

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Rename(fset.Arg(0), fset.Arg(1), archive.RenameOptions{Replace: *replace}); err != nil {
		return err
	}
	return a.Commit(*arhPath)
}
