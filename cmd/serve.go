package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lcjefferson/cliniflow2026-sub001/config"
	"github.com/lcjefferson/cliniflow2026-sub001/routes"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and the follow-up scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func runServer(parent context.Context, migrate bool) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap()
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log

	if migrate {
		if err := config.Migrate(rt.db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	executions := store.NewGormExecutionStore(rt.db)
	definitions := store.NewGormDefinitionStore(rt.db)

	if _, err := expireStaleClaims(ctx, rt, executions, rt.cfg.FollowUpStaleClaimAfter); err != nil {
		return err
	}

	processor, err := rt.newProcessor(executions)
	if err != nil {
		return err
	}
	generator := services.NewFollowUpGenerator(definitions, executions, log.With().Str("component", "followups").Logger())

	var scheduler *services.FollowUpScheduler
	if rt.cfg.FollowUpSchedulerEnabled {
		loc := utils.LoadLocation(rt.cfg.Timezone)
		scheduler = services.NewFollowUpScheduler(processor, rt.cfg.FollowUpCron, loc, log.With().Str("component", "scheduler").Logger())
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start follow-up scheduler: %w", err)
		}
		log.Info().Str("spec", rt.cfg.FollowUpCron).Time("next", scheduler.Next()).Msg("follow-up scheduler started")
	}

	router := routes.SetupRouter(routes.Dependencies{
		Config:      rt.cfg,
		DB:          rt.db,
		Log:         log,
		Runner:      processor,
		Definitions: definitions,
		Executions:  executions,
		Generator:   generator,
	})
	printRoutes(log, router)

	srv := &http.Server{
		Addr:              ":" + rt.cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// expireStaleClaims fails executions a previous process claimed but never
// completed.
func expireStaleClaims(ctx context.Context, rt *runtime, executions store.ExecutionStore, after time.Duration) (int, error) {
	now := time.Now()
	n, err := executions.ExpireStaleClaims(ctx, now.Add(-after), now)
	if err != nil {
		return 0, fmt.Errorf("expire stale claims: %w", err)
	}
	if n > 0 {
		rt.log.Warn().Int("count", n).Dur("older_than", after).Msg("failed stale follow-up claims")
	}
	return n, nil
}

func parseDuration(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

func printRoutes(log zerolog.Logger, r *gin.Engine) {
	for _, route := range r.Routes() {
		log.Debug().Str("method", route.Method).Str("path", route.Path).Msg("route")
	}
}
