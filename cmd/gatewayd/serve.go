package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carabiner-tech/agentgateway/internal/audit"
	"github.com/carabiner-tech/agentgateway/internal/config"
	"github.com/carabiner-tech/agentgateway/internal/gateway"
	"github.com/carabiner-tech/agentgateway/internal/logger"
	"github.com/carabiner-tech/agentgateway/internal/metrics"
	"github.com/carabiner-tech/agentgateway/internal/session"
)

func serveCmd() *cobra.Command {
	var configPath string
	var addrFlag string
	var debugFlag bool
	var auditLogFlag string
	var metricsAddrFlag string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "start the gateway HTTP and Agent WebSocket listeners",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(configPath); err != nil {
				return err
			}
			cfg := mgr.Get()

			if addrFlag != "" {
				cfg.ListenAddr = addrFlag
			}
			if debugFlag {
				cfg.Debug = true
			}
			if auditLogFlag != "" {
				cfg.AuditLogPath = auditLogFlag
			}
			if metricsAddrFlag != "" {
				cfg.MetricsAddr = metricsAddrFlag
			}

			logLevel := "info"
			if cfg.Debug {
				logLevel = "debug"
			}
			if err := logger.Init(logLevel, ""); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var auditLog *audit.Log
			if cfg.AuditLogPath != "" {
				var err error
				auditLog, err = audit.Open(cfg.AuditLogPath)
				if err != nil {
					return fmt.Errorf("open audit log: %w", err)
				}
				defer auditLog.Close()
			}

			reg := session.NewRegistry()
			bind := session.NewBinding()

			gwCfg := gateway.Config{
				ConversationHeader: cfg.ConversationHeader,
				Debug:              cfg.Debug,
				RateLimitPerSecond: cfg.RateLimit.PerSecond,
				RateLimitBurst:     cfg.RateLimit.Burst,
			}
			gw := gateway.New(gwCfg, reg, bind, auditLog)

			httpSrv := &http.Server{
				Addr:         cfg.ListenAddr,
				Handler:      gw,
				WriteTimeout: 0, // Agent RPCs may legitimately run long; §5 fixes no RPC deadline.
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			metricsErrCh := make(chan error, 1)
			go func() { metricsErrCh <- metrics.Serve(ctx, cfg.MetricsAddr) }()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("gatewayd listening", "addr", cfg.ListenAddr)
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				gw.CloseAgents()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&addrFlag, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&debugFlag, "debug", false, "enable debug mode (first-session fallback, verbose logging)")
	cmd.Flags().StringVar(&auditLogFlag, "audit-log", "", "path to the SQLite audit log (overrides config, empty disables)")
	cmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "listen address for /metrics (overrides config, empty disables)")

	return cmd
}
