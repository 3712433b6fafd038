package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
)

const lsHelp = `arhfs ls [-flags] <dir>

List the immediate children of dir within the archive.
`

func cmdLs(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("ls", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, lsHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)
	dir := "/"
	if fset.NArg() > 0 {
		dir = fset.Arg(0)
	}

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.List(dir)
	if err != nil {
		return err
	}
	tty := isatty.IsTerminal(os.Stdout.Fd())
	for _, e := range entries {
		if tty && e.IsDir {
			fmt.Printf("%s/\n", e.Name)
		} else {
			fmt.Println(e.Name)
		}
	}
	return nil
}
