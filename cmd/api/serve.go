package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dinidesk_backend/internal/controller"
	"dinidesk_backend/pkg/database"
	"dinidesk_backend/pkg/metrics"
)

const (
	bodyLimit       = 12 * 1024 * 1024
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
}

func serve(ctx context.Context, c *cli) error {
	a, err := wire(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := database.Migrate(a.db); err != nil {
		return err
	}
	if err := a.deps.Settings.EnsureDefaults(ctx); err != nil {
		return err
	}

	srv := fiber.New(fiber.Config{
		AppName:      "DiniDesk",
		BodyLimit:    bodyLimit,
		ErrorHandler: controller.ErrorHandler,
	})
	srv.Use(recover.New())
	srv.Use(fiberlogger.New())
	srv.Use(cors.New(cors.Config{
		AllowOrigins:     c.cfg.Server.CORSOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Stripe-Signature",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowCredentials: c.cfg.Server.CORSOrigins != "*",
	}))
	srv.Get("/metrics", metrics.Handler())

	controller.New(a.deps).Mount(srv)

	if c.cfg.Jobs.Enabled {
		scheduler, err := a.scheduler()
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
		log.Info().Strs("jobs", scheduler.Names()).Msg("Background jobs started")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", c.cfg.Server.Port).Msg("Server starting")
		errCh <- srv.Listen(":" + c.cfg.Server.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	if err := srv.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Error().Err(err).Msg("Server shutdown")
		return err
	}
	return nil
}
