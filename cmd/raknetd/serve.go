package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raknetd/internal/config"
	"raknetd/internal/listener"
	"raknetd/internal/metrics"
	"raknetd/internal/session"
	"raknetd/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// relayHandler forwards session lifecycle events to the logger until a
// real application layer is wired in above raknetd.
type relayHandler struct{}

func (relayHandler) OnConnect(s *session.Session) {
	logger.Info("session connected: %s", s.Addr().String())
}

func (relayHandler) OnMessage(s *session.Session, payload []byte) {
	logger.Debug("message from %s: %d bytes", s.Addr().String(), len(payload))
}

func (relayHandler) OnDisconnect(s *session.Session) {
	logger.Info("session disconnected: %s", s.Addr().String())
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the RakNet listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgFile != "" {
				v.SetConfigFile(cfgFile)
			} else {
				v.SetConfigName("config")
				v.SetConfigType("yaml")
				v.AddConfigPath(".")
			}
			return runServe(cmd, v)
		},
	}
	if err := config.RegisterFlags(cmd, v); err != nil {
		logger.Fatal("failed to register flags: %v", err)
	}
	return cmd
}

func runServe(cmd *cobra.Command, v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	logger.Banner("raknetd", version)
	logger.Info("bind address: %s", cfg.BindAddress)
	logger.Info("max connections: %d", cfg.MaxConnections)
	logger.Info("mtu: %d", cfg.MTU)
	logger.Success("configuration loaded")

	met := metrics.New()
	if cfg.MetricsBind != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", met.Handler())
			logger.Info("metrics listening on %s", cfg.MetricsBind)
			if err := http.ListenAndServe(cfg.MetricsBind, mux); err != nil {
				logger.Error("metrics server stopped: %v", err)
			}
		}()
	}

	l, err := listener.New(cfg, relayHandler{}, logger.Entry(), met)
	if err != nil {
		return fmt.Errorf("start listener: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- l.Run()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("listener stopped: %v", err)
		}
		return err
	case sig := <-sigCh:
		logger.Warn("received signal: %v", sig)
		logger.Info("shutting down gracefully...")
		if err := l.Close(); err != nil {
			logger.Error("error closing listener: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
		logger.Success("raknetd stopped")
		return nil
	}
}
