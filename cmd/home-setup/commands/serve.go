package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"home-setup/internal/application"
	"home-setup/internal/infra/httpapi"
)

// serve: run the wizard API for the browser dashboard.
func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the setup wizard API to the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Wizard.HTTPAddr
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			wizard, profiles := newWizard(ctx, application.WithObserver(func(snap application.Snapshot) {
				logger.Debug("wizard changed",
					"step", snap.StepName,
					"payment_type", snap.PaymentType,
					"devices", len(snap.Devices),
					"floorplan", snap.HasFloorplan,
				)
			}))

			server := httpapi.NewServer(addr, wizard, sessions, profiles, cfg.Wizard.MaxFloorplanBytes, cfg.Wizard.RateLimit, logger)
			if err := server.Start(ctx); err != nil {
				return err
			}

			logger.Info("setup wizard ready",
				"addr", addr,
				"backend", cfg.Backend.BaseURL,
				"max_floorplan_bytes", cfg.Wizard.MaxFloorplanBytes,
			)

			<-ctx.Done()
			logger.Info("shutting down")
			return server.Stop()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
