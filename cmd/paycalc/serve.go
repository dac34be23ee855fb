package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rgehrsitz/paycalc/internal/config"
	"github.com/rgehrsitz/paycalc/internal/metrics"
	"github.com/rgehrsitz/paycalc/internal/rules"
	"github.com/rgehrsitz/paycalc/internal/server"
	"github.com/rgehrsitz/paycalc/internal/store/sqlite"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the payroll HTTP API",
	Long: `Serve payslip calculation and payroll runs over HTTP. The rule catalog is
reloaded when its file changes; runs are saved to SQLite when --store is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveRules   string
	serveAddr    string
	serveStore   string
	serveWorkers int
)

func init() {
	serveCmd.Flags().StringVar(&serveRules, "rules", "", "Rule catalog file (default: rules_path setting)")
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address (default: listen_addr setting)")
	serveCmd.Flags().StringVar(&serveStore, "store", "", "SQLite database for payroll runs (default: store_path setting)")
	serveCmd.Flags().IntVarP(&serveWorkers, "workers", "w", 0, "Concurrent calculations per run (default: workers setting)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	catalog, path, err := a.loadCatalog(serveRules)
	if err != nil {
		return err
	}
	holder := config.NewCatalogHolder(catalog)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if err := config.WatchCatalog(ctx, path, holder, a.logger.Sugar(), func(c *rules.Catalog) {
		a.logger.Info("serving reloaded rule catalog", zap.Int("rule_sets", c.Len()))
	}); err != nil {
		a.logger.Warn("rule catalog hot reload disabled", zap.Error(err))
	}

	cfg := server.Config{
		Engine:   a.engine,
		Catalog:  holder,
		Workers:  a.settings.Workers,
		Logger:   a.logger,
		Metrics:  m,
		Gatherer: reg,
	}
	if serveWorkers > 0 {
		cfg.Workers = serveWorkers
	}
	if storePath := pick(cmd, "store", serveStore, a.settings.StorePath); storePath != "" {
		store, err := sqlite.New(storePath)
		if err != nil {
			return err
		}
		defer store.Close()
		cfg.Store = store
	}

	addr := pick(cmd, "addr", serveAddr, a.settings.ListenAddr)
	a.logger.Info("starting payroll API", zap.String("addr", addr), zap.Int("rule_sets", catalog.Len()))
	return server.New(cfg).ListenAndServe(ctx, addr)
}

