package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hotel-receptionist/internal/httpserver"
	"hotel-receptionist/internal/livews"
	"hotel-receptionist/internal/session"
	"hotel-receptionist/internal/voice"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server: admin API, telephony webhooks and live calls",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, bootOptions{connectWhatsApp: true})
	if err != nil {
		return err
	}
	defer a.Close()

	logger := a.logger
	logger.Info("starting hotel receptionist", "env", a.cfg.AppEnv)

	if err := a.svc.Init(ctx); err != nil {
		return fmt.Errorf("init backend: %w", err)
	}

	var handlers httpserver.Handlers
	model, err := a.gemini(ctx)
	if err != nil {
		logger.Warn("conversational model unavailable; voice and live endpoints disabled", "error", err)
	} else {
		sim := a.simulator(model.Chat())
		token := ""
		if a.cfg.TwilioValidateSignature {
			token = a.cfg.TwilioAuthToken
		}
		handlers.Voice = voice.NewHandler(sim, logger, a.metrics, voice.Options{
			TwilioAuthToken: token,
			PublicBaseURL:   a.cfg.PublicBaseURL,
		})

		connector := model.Live()
		handlers.Live = livews.NewHandler(func(obs session.Observer, menu session.MenuUI) livews.Call {
			return session.New(session.Deps{
				Connector: connector,
				Tools:     a.svc.Tools,
				Menu:      menu,
				Observer:  obs,
				Settings:  a.svc.Settings,
				Audit:     a.svc.Audit,
				Metrics:   a.metrics,
				Logger:    logger,
			}, session.Config{
				IdleTimeout: a.cfg.SessionIdleTimeout,
				MaxDrain:    a.cfg.SessionMaxDrain,
			})
		}, logger, a.metrics, livews.Options{})
	}

	if a.cfg.PublicBaseURL != "" {
		logger.Info("public base url configured", "base_url", a.cfg.PublicBaseURL, "voice_webhook", a.cfg.PublicBaseURL+voice.IncomingPath, "status_callback", a.cfg.PublicBaseURL+voice.StatusPath)
	}

	httpSrv := httpserver.New(a.cfg.HTTPListenAddr, logger, a.metrics, a.svc, handlers, a.cfg.PublicBasePath)

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("receptionist stopped")
	return nil
}
