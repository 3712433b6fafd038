package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

const statHelp = `arhfs stat [-flags] <path>

Print a file's id and size metadata.
`

func cmdStat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("stat", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, statHelp)
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

	info, err := a.Stat(fset.Arg(0))
	if err != nil {
		return err
	}
	fmt.Printf("id:                %d\n", info.ID)
	fmt.Printf("data offset:       %d\n", info.DataOffset)
	fmt.Printf("compressed size:   %d\n", info.CompressedSize)
	fmt.Printf("uncompressed size: %d\n", info.UncompressedSize)
	fmt.Printf("compressed:        %v\n", info.Compressed)
	return nil
}
