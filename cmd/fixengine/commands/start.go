package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/marmos91/fixengine/internal/logger"
	"github.com/marmos91/fixengine/pkg/config"
	"github.com/marmos91/fixengine/pkg/engine"
	"github.com/marmos91/fixengine/pkg/metrics"
	"github.com/marmos91/fixengine/pkg/message"
	"github.com/marmos91/fixengine/pkg/transport"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a FIX session",
	Long: `Start a FIX session as either an initiator (dialing out) or an acceptor
(listening), according to session.connection_type in the configuration.

Examples:
  # Start with the default config location
  fixengine start

  # Start with a custom config
  fixengine start --config /etc/fixengine/config.yaml

  # Override the log level for one run
  FIXENGINE_LOGGING_LEVEL=DEBUG fixengine start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sessionMetrics *metrics.SessionMetrics
	if cfg.Metrics.Enabled {
		reg := metrics.InitRegistry()
		sessionMetrics = metrics.NewSessionMetrics()

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = metricsServer.Close()
		}()
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("Metrics disabled")
	}

	st, err := cfg.BuildStore()
	if err != nil {
		return fmt.Errorf("failed to build message store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("store close error", "error", err)
		}
	}()

	logger.Info("Session configured",
		"begin_string", cfg.Session.BeginString,
		"sender_comp_id", cfg.Session.SenderCompID,
		"target_comp_id", cfg.Session.TargetCompID,
		"connection_type", cfg.Session.ConnectionType)

	callbacks := engine.Callbacks{
		OnCreate: func(id message.SessionID) {
			logger.Info("Session created", "session", id.String())
		},
		OnLogon: func(id message.SessionID) {
			logger.Info("Session logged on", "session", id.String())
		},
		OnLogout: func(id message.SessionID, reason string) {
			logger.Info("Session logged out", "session", id.String(), "reason", reason)
		},
		OnMessageFromApp: func(msg *message.Message, id message.SessionID) {
			logger.Debug("Application message received", "session", id.String(), "msg_type", msg.GetString(message.TagMsgType))
		},
	}

	sess, err := engine.Create(cfg.EngineConfig(), callbacks, st, cfg.BuildCodec())
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if sessionMetrics != nil {
		sess.SetMetrics(sessionMetrics)
	}

	conn, err := connect(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to establish connection: %w", err)
	}

	sessionDone := make(chan error, 1)
	go func() {
		sessionDone <- sess.Run(ctx, conn)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Session is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, logging off")
		if err := sess.RequestLogoff(cfg.Session.LogoutTimeout); err != nil {
			logger.Warn("logoff request failed", "error", err)
		}
		cancel()
		if err := <-sessionDone; err != nil {
			logger.Error("session shutdown error", "error", err)
			return err
		}
		logger.Info("Session stopped gracefully")

	case err := <-sessionDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("session error", "error", err)
			return err
		}
		logger.Info("Session stopped")
	}

	return nil
}

// connect establishes the transport connection according to
// session.connection_type: dialing out as an initiator or accepting one
// inbound connection as an acceptor.
func connect(ctx context.Context, cfg *config.Config) (net.Conn, error) {
	if cfg.Session.ConnectionType == "initiator" {
		initiator := transport.NewInitiator(transport.InitiatorConfig{
			Host:        cfg.Session.SocketConnectHost,
			Port:        cfg.Session.SocketConnectPort,
			DialTimeout: cfg.Session.LogonTimeout,
			UseTLS:      cfg.Session.UseSSL,
		})
		return initiator.Dial(ctx)
	}

	acceptor, err := transport.NewAcceptor(transport.AcceptorConfig{
		Host:   cfg.Session.SocketConnectHost,
		Port:   cfg.Session.SocketAcceptPort,
		UseTLS: cfg.Session.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return acceptor.Accept(ctx)
}
