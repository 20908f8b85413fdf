package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"planner.onebusaway.org/internal/appconf"
	"planner.onebusaway.org/internal/metrics"
	"planner.onebusaway.org/internal/restapi"
	"planner.onebusaway.org/internal/webui"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the journey planning API server",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug-ui", Usage: "serve the dataset inspector under /debug/"},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, os.Stdout)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := buildApplication(ctx, cfg, logger, metrics.NewCollector())
			if err != nil {
				return err
			}
			defer closeApplication(application)

			if cfg.Env == appconf.Development || c.Bool("debug-ui") {
				_ = application.GtfsManager.PrintStatistics(os.Stdout)
			}

			api := restapi.NewRestAPI(application)
			defer api.Shutdown()

			var handler http.Handler
			if c.Bool("debug-ui") {
				ui := &webui.WebUI{Application: application}
				handler = api.Handler(ui.SetWebUIRoutes)
			} else {
				handler = api.Handler()
			}

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Port),
				Handler:           handler,
				IdleTimeout:       time.Minute,
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      cfg.Planner.SearchTimeout.Std() + 10*time.Second,
				ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
			}
			return runServer(ctx, srv, logger, cfg.EnvName)
		},
	}
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, srv *http.Server, logger *slog.Logger, env string) error {
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("addr", srv.Addr), slog.String("env", env))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
