package main

import (
	"archive/tar"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/tesshu/arhfs/archive"
)

const exportHelp = `arhfs export [-flags] <dest.tar.gz>

Stream every file in the archive into a gzip-compressed tar file, using a
parallel gzip writer so export throughput is not bottlenecked on a single
CPU core.
`

func cmdExport(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("export", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, exportHelp)
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

	out, err := os.Create(fset.Arg(0))
	if err != nil {
		return err
	}
	defer out.Close()

	gz := pgzip.NewWriter(out)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	paths, err := collectPaths(a, "/")
	if err != nil {
		return err
	}

	// Bodies are read concurrently (ReadAt on the underlying file/mmap is
	// safe for concurrent use), but written to the tar stream in path order
	// so the resulting archive is reproducible.
	bodies := make([][]byte, len(paths))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			if egCtx.Err() != nil {
				return egCtx.Err()
			}
			info, err := a.Stat(path)
			if err != nil {
				return err
			}
			data, err := a.Read(info.ID)
			if err != nil {
				return err
			}
			bodies[i] = data
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, path := range paths {
		data := bodies[i]
		hdr := &tar.Header{
			Name: filepath.Join(".", path),
			Mode: 0444,
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := tw.Write(data); err != nil {
			return err
		}
	}
	return nil
}

// collectPaths recursively lists every file under dir, walking the
// synthesized directory tree one List call at a time.
func collectPaths(a *archive.Archive, dir string) ([]string, error) {
	entries, err := a.List(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		full := dir
		if full != "/" {
			full += "/"
		}
		full += e.Name
		if e.IsDir {
			sub, err := collectPaths(a, full)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
			continue
		}
		paths = append(paths, full)
	}
	return paths, nil
}
