package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const catHelp = `arhfs cat [-flags] <path>

Write a file's decompressed contents to stdout.
`

func cmdCat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("cat", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, catHelp)
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

	id, err := a.Lookup(fset.Arg(0))
	if err != nil {
		return err
	}
	data, err := a.Read(id)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
