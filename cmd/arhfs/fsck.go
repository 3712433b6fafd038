package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const fsckHelp = `arhfs fsck [-flags]

Check the path trie's back-link invariant and cross-check the block
allocator against the live files it should be tracking. Exits 1 if any
finding is reported.
`

func cmdFsck(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("fsck", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, fsckHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	findings, err := a.Fsck()
	if err != nil {
		return err
	}
	for _, f := range findings {
		fmt.Printf("%s: %s\n", f.Code, f.Message)
	}
	if len(findings) > 0 {
		os.Exit(1)
	}
	return nil
}
