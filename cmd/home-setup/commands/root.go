package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"home-setup/config"
	"home-setup/internal/application"
	"home-setup/internal/infra/backend"
	"home-setup/internal/infra/floorplan"
	"home-setup/internal/infra/mqtt"
	"home-setup/internal/infra/pushover"
	"home-setup/internal/infra/session"
)

var (
	configPath string

	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.FileStore
)

func Execute() error {
	root := &cobra.Command{
		Use:          "home-setup",
		Short:        "Initial setup wizard for the home automation platform",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			logger = setupLogger(cfg.Log)
			sessions = session.NewFileStore(cfg.Session.File)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(serveCmd(), applyCmd(), loginCmd(), logoutCmd(), whoamiCmd(), routeCmd())
	return root.Execute()
}

// newWizard wires a wizard session to the configured backend and notifiers.
// The backend client is returned as the profile source for later sign-ins.
func newWizard(ctx context.Context, opts ...application.Option) (*application.Session, application.ProfileSource) {
	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithPaths(cfg.Backend.SetupPath, cfg.Backend.ProfilePath),
	)

	opts = append([]application.Option{
		application.WithMaxFloorplanBytes(cfg.Wizard.MaxFloorplanBytes),
		application.WithHubDeviceID(cfg.Backend.HubDeviceID),
	}, opts...)

	wizard := application.NewSession(
		sessions,
		client,
		floorplan.NewReader(cfg.Wizard.MaxFloorplanBytes),
		createNotifier(),
		logger,
		opts...,
	)

	prefill(ctx, wizard, client)
	return wizard, client
}

// prefill seeds the wizard from the stored profile when someone is signed in.
func prefill(ctx context.Context, wizard *application.Session, profiles application.ProfileSource) {
	identity, err := sessions.Current(ctx)
	if err != nil {
		return
	}
	profile, err := profiles.FetchProfile(ctx, *identity)
	if err != nil {
		logger.Warn("profile not loaded, starting empty", "error", err)
		return
	}
	wizard.Prefill(*profile)
	logger.Debug("wizard prefilled from profile", "user_id", profile.ID)
}

func createNotifier() application.Notifier {
	var notifiers application.MultiNotifier

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			logger.Warn("MQTT disabled", "error", err)
		} else {
			notifiers = append(notifiers, mqtt.NewNotifier(client, cfg.MQTT.Topic, logger))
		}
	}
	if cfg.Pushover.Enabled {
		notifiers = append(notifiers, pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey,
			pushover.WithPriority(cfg.Pushover.Priority),
		))
	}

	if len(notifiers) == 0 {
		return &application.NoopNotifier{}
	}
	return notifiers
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	// stdout carries command output, so logs go to stderr.
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
