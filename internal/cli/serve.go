package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/inverif/internal/api"
	"github.com/ironsheep/inverif/internal/intake"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP intake service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides config)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	log := newLogger(cfg, os.Stdout)
	defer log.Sync()

	engine, checker := newChecker(cfg, log)
	if info := engine.Info(); !info.Available {
		log.Warn("cli", "OCR engine unavailable, image uploads will fail their check", map[string]interface{}{
			"error": info.Error,
		})
	}

	notifier, closeNotifier, err := newNotifier(cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	svc := intake.NewService(checker, notifier, log, cfg.Intake())
	defer svc.Close()

	srv := api.New(svc, engine.Info, log, api.Options{
		Port:           cfg.Port,
		AllowOrigins:   cfg.AllowedOrigins(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Version:        a.build.Version,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("cli", "shutting down", nil)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
