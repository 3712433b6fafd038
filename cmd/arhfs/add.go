package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"golang.org/x/xerrors"
)

const addHelp = `arhfs add [-flags] <src-file> <archive-path>

Store src-file's contents at archive-path, creating or updating it, then
commit the archive in place.
`

func cmdAdd(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("add", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	compress := fset.Bool("compress", false, "compress the stored data")
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, addHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	if fset.NArg() != 2 {
		fset.Usage()
		os.Exit(2)
	}
	src, dst := fset.Arg(0), fset.Arg(1)

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := os.ReadFile(src)
	if err != nil {
		return xerrors.Errorf("reading %s: %w", src, err)
	}

	if _, err := a.Write(dst, data, writeOptions(*compress)); err != nil {
		return err
	}
	return a.Commit(*arhPath)
}
