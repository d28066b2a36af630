package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/inverif/internal/mcp"
)

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the document tools over MCP on stdin/stdout",
		Long: `Serve document_check_readability, document_ocr and supplier_requirements
as MCP tools. Stdout carries the protocol; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log := newLogger(a.cfg, os.Stderr)
			defer log.Sync()
			log.Debug("cli", "starting MCP server", map[string]interface{}{
				"version": a.build.Version,
				"commit":  a.build.GitCommit,
			})

			engine, checker := newChecker(a.cfg, log)
			return mcp.New(checker, engine, log, a.build.Version).Run(ctx)
		},
	}
}
