package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/xerrors"

	"github.com/tesshu/arhfs/fs"
)

const fuseHelp = `arhfs fuse [-flags] <mountpoint>

Mount the archive read-only at mountpoint using FUSE.
`

func cmdFuse(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("fuse", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, fuseHelp)
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

	join, err := fs.Mount(ctx, a, fset.Arg(0))
	if err != nil {
		return xerrors.Errorf("mount: %w", err)
	}
	return join(ctx)
}
