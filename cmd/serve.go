package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/chat"
	"intelplatform/handlers"
	"intelplatform/i18n"
	"intelplatform/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard and JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// newServer wires the HTTP layer on top of a.
func newServer(ctx context.Context, a *app) *handlers.Server {
	incidents := store.NewIncidents(a.conn)
	tickets := store.NewTickets(a.conn)
	datasets := store.NewDatasets(a.conn)

	var gen chat.Generator
	if a.cfg.GoogleAPIKey != "" {
		g, err := chat.NewGeminiGenerator(ctx, a.cfg.GoogleAPIKey, a.cfg.AIModel, a.cfg.AIBaseURL)
		if err != nil {
			a.log.Warn("assistant disabled", zap.Error(err))
		} else {
			gen = g
		}
	} else {
		a.log.Warn("GOOGLE_API_KEY not set; the assistant will answer with an error")
	}

	return handlers.NewServer(handlers.Deps{
		Config:    a.cfg,
		DB:        a.conn,
		Auth:      a.auth,
		Sessions:  auth.NewSessions(a.keys, a.cfg.SecureCookies, int(a.cfg.TokenTTL.Seconds())),
		Chat:      chat.NewService(store.NewChatHistory(a.conn), chat.NewContextSource(incidents, tickets, datasets, a.cfg.ContextRows), gen, a.cfg.AITimeout, a.log),
		Incidents: incidents,
		Tickets:   tickets,
		Datasets:  datasets,
		CSRFKey:   a.keys.CSRF,
		Log:       a.log,
	})
}

func serve(ctx context.Context) error {
	if err := i18n.Load(); err != nil {
		return fmt.Errorf("load translations: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := store.ImportLegacyUsers(ctx, a.conn, a.cfg.UsersFile)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("imported legacy users", zap.Int("count", n), zap.String("file", a.cfg.UsersFile))
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.ListenIP, a.cfg.ListenPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(ctx, a).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("addr", addr), zap.String("app", a.cfg.AppName))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
