package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"quiz-challenge/internal/config"
	"quiz-challenge/internal/logger"
	"quiz-challenge/internal/remote"
	transport "quiz-challenge/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand that serves the quiz to browsers.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Serve the quiz page and its websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(cfg.Log.Level)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := newRemoteClient(cfg, remote.WithMetrics(remote.NewMetrics(reg)))
	if err != nil {
		return err
	}

	mux := transport.NewUIMux(
		transport.NewWSHandler(client),
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	)
	finalPort := pickPort(portFlag, cfg.Server.Port, "8080")
	logger.Info("starting quiz server", "port", finalPort, "questionService", cfg.Service.BaseURL)
	return serve(ctx, finalPort, mux)
}

func newRemoteClient(cfg config.Config, opts ...remote.Option) (*remote.Client, error) {
	opts = append(opts, remote.WithTimeout(config.Duration(cfg.Service.Timeout, 10*time.Second)))
	return remote.New(cfg.Service.BaseURL, opts...)
}

func pickPort(candidates ...string) string {
	for _, p := range candidates {
		if p != "" {
			return p
		}
	}
	return ""
}

// serve runs handler until SIGINT/SIGTERM or ctx cancellation, then shuts down gracefully.
func serve(ctx context.Context, port string, handler http.Handler) error {
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	case err := <-errCh:
		logger.Error("failed to start server", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
