package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tkingovr/viewfilter/internal/admin"
	"github.com/tkingovr/viewfilter/internal/audit"
	"github.com/tkingovr/viewfilter/internal/watch"
)

var noWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the site and the admin server",
	Long: `Start the site described by the config file together with the admin
API. Without a config file the built-in hello site is served. Policy sources
are watched and reloaded on change.`,
	Example: `  viewfilter serve -c site.yaml
  viewfilter serve -v`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload policy files on change")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := newSite(cfg, engine, auditStore, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	siteSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Info("starting site", "addr", cfg.Listen, "base_path", cfg.BasePath)
		if err := siteSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("site server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return siteSrv.Shutdown(shutdownCtx)
	})

	adminSrv := admin.NewServer(cfg.AdminAddr, auditStore, engine, s.binder, metrics, logger)
	g.Go(func() error {
		if err := adminSrv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("admin server: %w", err)
		}
		return nil
	})

	if !noWatch && cfg.Path != "" {
		w, err := watch.New(engine, logger, cfg.Path, cfg.File.Policy.OPAPolicy)
		if err != nil {
			return err
		}
		g.Go(func() error { return w.Run(ctx) })
	}

	return g.Wait()
}
