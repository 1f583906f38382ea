package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ErbaZZ/wusd-arb/blocks"
	"github.com/ErbaZZ/wusd-arb/cmd/bot"
	"github.com/ErbaZZ/wusd-arb/config"
	"github.com/ErbaZZ/wusd-arb/executor"
	"github.com/ErbaZZ/wusd-arb/notify"
	"github.com/ErbaZZ/wusd-arb/storage"
	"github.com/ErbaZZ/wusd-arb/utils"
	"github.com/ErbaZZ/wusd-arb/utils/metrics"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const metricsNamespace = "wusd_arb"

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if cfg.ClaimOnly {
			log.Info("CLAIM is set, running a single claim")
			return runClaim(cmd.Context(), cfg, log)
		}
		return runBot(cmd.Context(), cfg, log)
	},
}

func runBot(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	opts, _, err := executor.NewTransactor(cfg.PrivateKey, big.NewInt(cfg.Network.ChainID))
	if err != nil {
		return err
	}

	c, err := dialChain(ctx, cfg, opts.From, log)
	if err != nil {
		return err
	}
	defer c.Close()

	m := metrics.NewBotMetrics(metricsNamespace, metrics.Registry())
	if cfg.PrometheusEnabled {
		go serveMetrics(ctx, cfg.PrometheusEndpoint, log)
	}

	breaker := blocks.NewCircuitBreaker(&cfg.CircuitBreaker, m.Chain.BreakerTrips, log)
	monitor, err := blocks.NewMonitor(c.client, blocks.MonitorConfig{
		ReconnectBackoff:   cfg.Network.ReconnectBackoff,
		SeenHeadsCacheSize: cfg.Network.SeenHeadsCacheSize,
	}, breaker, m.Chain, log)
	if err != nil {
		return err
	}

	exec, err := newExecutor(cfg, c, opts, monitor, m.Execution, log)
	if err != nil {
		return err
	}
	detector, err := newDetector(&cfg.Strategy, log)
	if err != nil {
		return err
	}

	journal, err := storage.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	b, err := bot.New(bot.Deps{
		Heads:     monitor,
		Snapshots: c.provider,
		Detector:  detector,
		Executor:  exec,
		Breaker:   breaker,
		Throttle:  blocks.NewThrottle(cfg.RPCRateLimit),
		Notifier:  notify.New(cfg.Notify.LineEndpoint, cfg.Notify.LineToken, cfg.Notify.Timeout, log),
		Journal:   journal,
		Metrics:   m,
		Formatter: notify.Formatter{Symbol: cfg.Strategy.AssetSymbol, Decimals: cfg.Strategy.AssetDecimals},
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Shut down")
	return nil
}

func serveMetrics(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics", zap.String("addr", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Metrics server failed", zap.Error(err))
	}
}

func init() {
	rootCmd.AddCommand(startCmd)
}
