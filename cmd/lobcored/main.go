package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	"github.com/tradsys/lobcore/internal/admission"
	"github.com/tradsys/lobcore/internal/common"
	"github.com/tradsys/lobcore/internal/config"
	"github.com/tradsys/lobcore/internal/db"
	"github.com/tradsys/lobcore/internal/db/repository"
	order_matching "github.com/tradsys/lobcore/internal/core/matching"
	"github.com/tradsys/lobcore/internal/execution"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lobcored",
	Short: "lobcored runs the limit order book matching engine service.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config directory (default: ./config, /etc/tradsys)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the matching engines, repository, admission gate, and metrics endpoint",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := config.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	if err := config.TuneForLatency(common.Named(logger, "gc")); err != nil {
		return fmt.Errorf("tuning GC: %w", err)
	}

	repo, err := buildRepository(cfg, logger)
	if err != nil {
		return fmt.Errorf("building repository: %w", err)
	}

	router := order_matching.NewSymbolRouter(common.Named(logger, "router"))
	defer router.Close()

	reporter := common.NewReporter("lobcored", "1.0.0", logger)

	gate := admission.New(limiter.Rate{
		Period: time.Second,
		Limit:  int64(cfg.Admission.RatePerSecond),
	}, common.Named(logger, "admission"))

	var tick uint64
	clock := func() uint64 { tick++; return tick }

	// executors is the library's actual command surface: one per
	// registered symbol, each admitting through gate and persisting
	// through repo. lobcored embeds no wire transport of its own (spec
	// §6 — the engine is an embedded library, not a service mesh node),
	// so nothing in this binary calls executors yet; a host process
	// that links this package in drives them directly.
	executors := make(map[string]*execution.Executor, len(cfg.Matching.Symbols))

	for _, symbol := range cfg.Matching.Symbols {
		engine := order_matching.NewEngine(symbol, cfg.Matching.TickExponent, cfg.Matching.OrderArenaSize, cfg.Matching.PricePointArena, clock, common.Named(logger, "engine."+symbol))
		if err := router.Register(symbol, engine); err != nil {
			return fmt.Errorf("registering engine for %s: %w", symbol, err)
		}
		executors[symbol] = execution.New(symbol, router, gate, repo, common.Named(logger, "executor."+symbol))

		symbol := symbol
		reporter.Register("engine."+symbol, common.CheckerFunc(func() common.Status {
			if engine.Poisoned() != nil {
				return common.StatusDown
			}
			return common.StatusUp
		}))
		logger.Info("registered engine", zap.String("symbol", symbol))
	}

	logger.Info("executors ready to accept submissions", zap.Int("symbols", len(executors)))

	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		rep := reporter.Report()
		w.Header().Set("Content-Type", "application/json")
		if rep.Status != common.StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q}`, rep.Status)
	})

	addr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	logger.Info("serving metrics and health endpoints", zap.String("addr", addr))
	return http.ListenAndServe(addr, nil)
}

// buildRepository wires the SQL repository behind a redis read cache,
// per cfg.Database/cfg.Cache. Every registered symbol's tick exponent
// is threaded through so the repository can convert decimal columns
// back to fixedpoint.Value on read.
func buildRepository(cfg *config.Config, logger *zap.Logger) (repository.Repository, error) {
	dbConn, err := db.Connect(&db.DBConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := db.InitializeDatabase(dbConn, logger); err != nil {
		return nil, err
	}

	symbolExponents := make(map[string]int, len(cfg.Matching.Symbols))
	for _, symbol := range cfg.Matching.Symbols {
		symbolExponents[symbol] = cfg.Matching.TickExponent
	}

	sqlRepo, err := repository.NewSQLRepository(dbConn, common.Named(logger, "repository.sql"), symbolExponents)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Cache.Addr,
		DB:   cfg.Cache.DB,
	})

	return repository.NewCachedRepository(sqlRepo, rdb, common.Named(logger, "repository.cache"), cfg.Cache.TTL), nil
}
