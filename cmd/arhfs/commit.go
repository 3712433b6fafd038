package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/tesshu/arhfs/internal/oninterrupt"
)

const commitHelp = `arhfs commit [-flags] [out-path]

Re-encode and atomically write the archive. If out-path is omitted, the
archive is committed in place (-arh).
`

func cmdCommit(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("commit", flag.ExitOnError)
	arhPath, ardPath, useMMap := openFlags(fset)
	fset.Usage = func() {
		fmt.Fprint(os.Stderr, commitHelp)
		fset.PrintDefaults()
	}
	fset.Parse(args)

	a, err := openArchive(*arhPath, *ardPath, *useMMap)
	if err != nil {
		return err
	}
	defer a.Close()

	out := *arhPath
	if fset.NArg() > 0 {
		out = fset.Arg(0)
	}

	// Report a SIGINT that arrives before Commit returns. Commit itself is
	// atomic with respect to out-path, but the process exits from the
	// interrupt handler, so Cleanup (deferred inside Commit) does not run
	// and a renameio temp file may be left beside out-path.
	committed := make(chan struct{})
	oninterrupt.Register(func() {
		select {
		case <-committed:
		default:
			fmt.Fprintln(os.Stderr, "commit interrupted; archive left unmodified at", out)
		}
	})

	if err := a.Commit(out); err != nil {
		return err
	}
	close(committed)
	return nil
}
