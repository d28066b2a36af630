// Package cli wires the inverif command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ironsheep/inverif/internal/config"
)

// BuildInfo is set from the linker flags of the main package.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

type app struct {
	build   BuildInfo
	cfgFile string
	debug   bool
	cfg     *config.Config
}

// NewRootCommand builds the inverif command tree.
func NewRootCommand(build BuildInfo) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "inverif",
		Short: "Supplier document intake with OCR readability checks",
		Long: `inverif runs the supplier document intake service.

Suppliers pick their type (local or foreign), enter a purchase-order number
and upload the required documents. Every image is OCR'd and rejected when it
does not contain enough readable text.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			if a.debug {
				cfg.Debug = true
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (YAML)")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		newServeCommand(a),
		newMCPCommand(a),
		newCheckCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute(build BuildInfo) {
	if err := NewRootCommand(build).Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), a.build)
		},
	}
}

func printVersion(w io.Writer, b BuildInfo) {
	fmt.Fprintf(w, "inverif %s\n", b.Version)
	fmt.Fprintf(w, "  Build time: %s\n", b.BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", b.GitCommit)
}
