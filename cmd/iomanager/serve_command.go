package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"iomanager/internal/api"
	"iomanager/internal/batch"
	"iomanager/internal/farm"
	"iomanager/internal/logging"
	"iomanager/internal/metrics"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}
			ctx.loggerOnce.Do(func() { ctx.logger = logger })

			collector := metrics.NewCollector()
			processor, client, err := ctx.processor(collector)
			if err != nil {
				return err
			}
			store, err := ctx.openLedger()
			if err != nil {
				return err
			}

			server := &api.Server{
				Processor: processor,
				Planner:   ctx.planner(),
				Ledger:    store,
				Metrics:   collector,
				Settings:  batch.SettingsFromConfig(cfg),
				Reconcile: ctx.reconcileSettings(cfg),
				LockPath:  cfg.LockPath(),
				Checks:    map[string]api.Pinger{"farm": farm.NewConfiguredDeadline(cfg)},
				Logger:    logger,
			}
			if client != nil {
				server.Editor = client
				server.Checks["shotgrid"] = client
			}

			if strings.TrimSpace(bind) == "" {
				bind = cfg.Paths.APIBind
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(runCtx, bind)
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default paths.api_bind)")
	return cmd
}
