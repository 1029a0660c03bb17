package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/icubam/icubam/internal/infrastructure/migration"
	"github.com/icubam/icubam/internal/interfaces/cli/bootstrap"
	httpRouter "github.com/icubam/icubam/internal/interfaces/http"
	"github.com/icubam/icubam/internal/shared/constants"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/version"
)

const shutdownTimeout = 30 * time.Second

var (
	components         string
	autoMigrate        bool
	skipMigrationCheck bool
)

// NewCommand builds the server command. flags are registered on the root.
func NewCommand(flags *bootstrap.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the ICUBAM servers",
		Long: `Start the www server (update form, data API, map) and/or the messaging
server (report scheduler, delivery, chat bot) in one process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}

	cmd.Flags().StringVar(&components, "components", "www,messaging", "Comma-separated servers to run (www, messaging)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Automatically run database migrations on startup (not recommended for production)")
	cmd.Flags().BoolVar(&skipMigrationCheck, "skip-migration-check", false, "Skip migration status check on startup")

	return cmd
}

// ParseComponents reads the --components list.
func ParseComponents(s string) (httpRouter.Components, error) {
	var c httpRouter.Components
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(strings.ToLower(name)) {
		case "www":
			c.WWW = true
		case "messaging":
			c.Messaging = true
		case "":
		default:
			return c, fmt.Errorf("unknown component %q", name)
		}
	}
	if !c.WWW && !c.Messaging {
		return c, errors.New("no component selected")
	}
	return c, nil
}

func run(flags *bootstrap.Flags) error {
	selected, err := ParseComponents(components)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, flags)
	if err != nil {
		return err
	}
	defer rt.Close()
	log := rt.Log
	cfg := rt.Config

	log.Infow("starting server",
		"version", version.String(),
		"environment", rt.Env,
		"www", selected.WWW,
		"messaging", selected.Messaging,
		"auto-migrate", autoMigrate)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := handleMigrations(rt); err != nil {
		return fmt.Errorf("migration handling failed: %w", err)
	}

	container, err := httpRouter.NewContainer(ctx, rt.DB, cfg, selected, log)
	if err != nil {
		return fmt.Errorf("failed to build services: %w", err)
	}
	defer container.Shutdown(context.Background())

	g, gctx := errgroup.WithContext(ctx)

	if selected.WWW {
		srv := newHTTPServer(cfg.Server.GetAddr(), httpRouter.NewWWWRouter(container).GetEngine())
		g.Go(func() error { return serve(gctx, srv, "www", log) })
		g.Go(func() error { return container.RunWriter(gctx) })
	}
	if selected.Messaging {
		addr := cfg.Server.Host + ":" + strconv.Itoa(cfg.Messaging.Port)
		srv := newHTTPServer(addr, httpRouter.NewMessagingRouter(container).GetEngine())
		g.Go(func() error { return serve(gctx, srv, "messaging", log) })
		g.Go(func() error { return container.RunMessaging(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "error", err)
		return err
	}
	log.Infow("server exited gracefully")
	return nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// serve runs srv until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, name string, log logger.Interface) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server starting", "server", name, "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infow("shutting down http server", "server", name)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "server", name, "error", err)
		return err
	}
	return <-errCh
}

func handleMigrations(rt *bootstrap.Runtime) error {
	log := rt.Log
	if skipMigrationCheck {
		log.Infow("skipping migration check")
		return nil
	}

	if autoMigrate {
		if rt.Env == constants.EnvProduction {
			log.Warnw("auto-migration is enabled in production environment - this is not recommended!")
		}
		manager, err := migration.NewManager(rt.Env, rt.Config.Database.Driver)
		if err != nil {
			return err
		}
		return manager.Migrate(rt.DB)
	}

	strategy, err := migration.NewGooseStrategy(rt.Config.Database.Driver)
	if err != nil {
		return err
	}
	version, err := strategy.GetVersion(rt.DB)
	if err != nil {
		log.Warnw("failed to check migration status", "error", err)
		return nil
	}
	log.Infow("current migration version", "version", version)
	return nil
}
