package main

import (
	"flag"

	"github.com/tesshu/arhfs/archive"
)

// openFlags registers the -arh/-ard/-mmap flags shared by every subcommand
// that operates on an existing archive, returning thunks that resolve once
// fset.Parse has run.
func openFlags(fset *flag.FlagSet) (arhPath, ardPath *string, useMMap *bool) {
	arhPath = fset.String("arh", "", "path to the .arh metadata file")
	ardPath = fset.String("ard", "", "path to the .ard data file (optional)")
	useMMap = fset.Bool("mmap", false, "memory-map the archive instead of reading it into a buffer")
	return arhPath, ardPath, useMMap
}

func openArchive(arhPath, ardPath string, useMMap bool) (*archive.Archive, error) {
	return archive.Open(arhPath, ardPath, archive.Options{MMap: useMMap})
}

func writeOptions(compress bool) archive.WriteOptions {
	return archive.WriteOptions{Compress: compress}
}
