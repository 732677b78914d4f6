// Command monitor runs the dual-venue spread aggregator: it streams
// tickers or order books from Market A and Market B, ranks the common
// pairs by spread, and serves the result over REST, WebSocket, and
// Prometheus metrics until it receives a termination signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"spreadmonitor/internal/aggregator"
	"spreadmonitor/internal/api"
	"spreadmonitor/internal/api/handlers"
	"spreadmonitor/internal/config"
	"spreadmonitor/internal/exchange/restws"
	"spreadmonitor/internal/marketref"
	"spreadmonitor/internal/stream"
	"spreadmonitor/internal/wsbroadcast"
	"spreadmonitor/pkg/utils"
)

type cliFlags struct {
	monitorPanel  string
	marketA       string
	marketB       string
	quoteCurrency string
	symbols       string
	topN          int
	logLevel      string

	marketARestURL string
	marketAWSURL   string
	marketBRestURL string
	marketBWSURL   string
	proxyURL       string
}

func main() {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "monitor",
		Short: "Dual-venue cryptocurrency spread monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(flags)
		},
	}

	root.Flags().StringVar(&flags.monitorPanel, "monitor-panel", "ticker", "spread mode: ticker|orderbook")
	root.Flags().StringVar(&flags.marketA, "market-a", "binance.spot", "venue A market spec, <exchange>.<type>[.<subtype>]")
	root.Flags().StringVar(&flags.marketB, "market-b", "okx.swap.linear", "venue B market spec, <exchange>.<type>[.<subtype>]")
	root.Flags().StringVar(&flags.quoteCurrency, "quote-currency", "USDT", "quote currency filter for pair discovery")
	root.Flags().StringVar(&flags.symbols, "symbols", "", "comma-separated BASE-QUOTE allowlist, overrides --quote-currency")
	root.Flags().IntVar(&flags.topN, "topn", 20, "default ranking depth for the top(n) query surface")
	root.Flags().StringVar(&flags.logLevel, "log-level", "info", "debug|info|warn|error")

	root.Flags().StringVar(&flags.marketARestURL, "market-a-rest-url", "http://localhost:9101", "REST base URL for the venue A reference adapter")
	root.Flags().StringVar(&flags.marketAWSURL, "market-a-ws-url", "ws://localhost:9101/stream", "WebSocket URL for the venue A reference adapter")
	root.Flags().StringVar(&flags.marketBRestURL, "market-b-rest-url", "http://localhost:9102", "REST base URL for the venue B reference adapter")
	root.Flags().StringVar(&flags.marketBWSURL, "market-b-ws-url", "ws://localhost:9102/stream", "WebSocket URL for the venue B reference adapter")
	defaultProxy := ""
	for _, key := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if defaultProxy == "" {
			defaultProxy = os.Getenv(key)
		}
	}
	root.Flags().StringVar(&flags.proxyURL, "proxy-url", defaultProxy, "outbound proxy for both venue adapters, read once at startup")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(flags *cliFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Logging.Level = flags.logLevel

	log := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	mode, err := parseMode(flags.monitorPanel)
	if err != nil {
		return err
	}

	marketA, err := marketref.Parse(flags.marketA)
	if err != nil {
		return err
	}
	marketB, err := marketref.Parse(flags.marketB)
	if err != nil {
		return err
	}

	clientA, err := restws.New(restws.Config{
		Name: marketA.Exchange, BaseURL: flags.marketARestURL, WSURL: flags.marketAWSURL,
		ProxyURL: flags.proxyURL, Log: log,
	})
	if err != nil {
		return fmt.Errorf("connect market A (%s): %w", marketA, err)
	}
	clientB, err := restws.New(restws.Config{
		Name: marketB.Exchange, BaseURL: flags.marketBRestURL, WSURL: flags.marketBWSURL,
		ProxyURL: flags.proxyURL, Log: log,
	})
	if err != nil {
		clientA.Close()
		return fmt.Errorf("connect market B (%s): %w", marketB, err)
	}

	agg := aggregator.New(aggregator.Config{
		ClientA:           clientA,
		ClientB:           clientB,
		MarketA:           marketA,
		MarketB:           marketB,
		QuoteCurrency:     flags.quoteCurrency,
		Symbols:           parseSymbols(flags.symbols),
		Mode:              mode,
		ClockSyncInterval: cfg.Stream.ClockSyncInterval,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := agg.LoadMarkets(ctx); err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	if err := agg.Start(ctx); err != nil {
		return fmt.Errorf("start aggregator: %w", err)
	}

	hub := wsbroadcast.NewHub(agg, flags.topN, time.Second, log)
	go hub.Run()

	router := api.SetupRoutes(&api.Dependencies{
		Aggregator: handlers.NewAggregatorHandler(agg, flags.topN),
		Auth: handlers.NewAuthHandler(
			cfg.Security.AdminUsername, cfg.Security.AdminPasswordHash,
			cfg.Security.JWTSecret, time.Duration(cfg.Security.SessionTimeout)*time.Second,
		),
		Hub:       hub,
		JWTSecret: cfg.Security.JWTSecret,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("listening", utils.String("addr", addr), utils.Bool("https", cfg.Server.UseHTTPS))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", utils.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	hub.Stop()
	if err := agg.Stop(); err != nil {
		log.Warn("aggregator stop reported errors", utils.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("exited cleanly")
	return nil
}

func parseMode(panel string) (stream.Mode, error) {
	switch panel {
	case "ticker":
		return stream.ModeTicker, nil
	case "orderbook":
		return stream.ModeOrderBook, nil
	default:
		return 0, fmt.Errorf("--monitor-panel must be ticker or orderbook, got %q", panel)
	}
}

func parseSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
