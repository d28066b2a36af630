package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/readability"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dimLabel  = color.New(color.Faint).SprintFunc()
)

type checkOutcome struct {
	path   string
	result readability.Result
	err    error
}

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>...",
		Short: "Run the readability check on local documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(a.cfg, os.Stderr)
			defer log.Sync()

			_, checker := newChecker(a.cfg, log)
			return runCheck(cmd.Context(), cmd.OutOrStdout(), checker, args, a.cfg.MaxUploadBytes(), int(a.cfg.MaxConcurrentChecks))
		},
	}
}

// runCheck checks files concurrently and prints one line per file in
// argument order. It fails when any file is rejected.
func runCheck(ctx context.Context, w io.Writer, checker intake.Checker, paths []string, maxBytes int64, parallel int) error {
	outcomes := make([]checkOutcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, path := range paths {
		g.Go(func() error {
			outcomes[i].path = path
			up, err := readability.LoadFile(path, maxBytes)
			if err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].result = checker.Check(gctx, up)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		name := filepath.Base(o.path)
		switch {
		case o.err != nil:
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", failLabel("FAIL"), name, o.err)
		case !o.result.Readable:
			failed++
			fmt.Fprintf(w, "%s %s: %s\n", failLabel("FAIL"), name, o.result.Error)
		case o.result.Skipped:
			fmt.Fprintf(w, "%s %s %s\n", passLabel("PASS"), name, dimLabel(skippedDetail(o.result)))
		default:
			fmt.Fprintf(w, "%s %s %s\n", passLabel("PASS"), name,
				dimLabel(fmt.Sprintf("(%d chars, %.1f%% confidence)", o.result.TextLength, o.result.Confidence)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed the readability check", failed, len(paths))
	}
	return nil
}

func skippedDetail(r readability.Result) string {
	if r.Pages > 0 {
		return fmt.Sprintf("(pdf, %d pages)", r.Pages)
	}
	return "(not OCR'd)"
}
