package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/config"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

var envFile string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "cliniflow",
		Short:         "Clinic management API and follow-up processor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(followUpsCmd())
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runtime is what every subcommand starts from.
type runtime struct {
	cfg *config.Config
	log zerolog.Logger
	db  *gorm.DB
}

func bootstrap() (*runtime, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	log := config.NewLogger(cfg.LogLevel, cfg.LogPretty)

	db, err := config.ConnectDB(cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("connected to database")
	return &runtime{cfg: cfg, log: log, db: db}, nil
}

func (rt *runtime) close() {
	if sqlDB, err := rt.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newDispatcher sends through Twilio when credentials are configured and
// only logs messages otherwise.
func (rt *runtime) newDispatcher(loc *time.Location) (services.Dispatcher, error) {
	log := rt.log.With().Str("component", "dispatcher").Logger()
	if !rt.cfg.TwilioEnabled() {
		log.Warn().Msg("twilio not configured, follow-ups will only be logged")
		return services.NewLogDispatcher(loc, log), nil
	}
	return services.NewTwilioDispatcher(
		services.WithTwilioCredentials(rt.cfg.TwilioAccountSID, rt.cfg.TwilioAuthToken),
		services.WithSenders(rt.cfg.TwilioPhoneNumber, rt.cfg.TwilioWhatsAppNumber),
		services.WithRateLimit(rt.cfg.DispatchRatePerSec),
		services.WithChannelPolicy(services.NewSettingsPolicy(rt.db)),
		services.WithLocation(loc),
		services.WithDispatchLogger(log),
	)
}

func (rt *runtime) newProcessor(executions store.ExecutionStore) (*services.Processor, error) {
	loc := utils.LoadLocation(rt.cfg.Timezone)
	dispatcher, err := rt.newDispatcher(loc)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}
	return services.NewProcessor(executions, dispatcher,
		services.WithDispatchTimeout(rt.cfg.FollowUpDispatchTimeout),
		services.WithConcurrency(rt.cfg.FollowUpConcurrency),
		services.WithProcessorLogger(rt.log.With().Str("component", "followups").Logger()),
	), nil
}
