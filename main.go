package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hedgeflow/config"
	"hedgeflow/internal/metrics"
	"hedgeflow/logger"
)

const usage = `usage: hedgeflow [-config path] <command> [args]

commands:
  hedge <loanAmount> <referencePurchasePrice> <premium>   buy the protective put and print the outcome
  serve                                                    serve POST /v1/hedge
  decode <payload>                                         check a stored outcome payload
  expiry                                                   print the next expiry label
`

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultConfigPath, "Path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath))
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	env := config.AppEnvironment()
	log.WithFields(logger.Fields{
		"service":     cfg.Hedgeflow.Name,
		"version":     cfg.Hedgeflow.Version,
		"environment": env,
		"command":     flag.Arg(0),
	}).Info("starting hedgeflow")

	checkSettings(cfg, env, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}
	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace, cfg.Metrics.CloudWatch.Dashboard)
	}
	if cfg.Metrics.Prometheus {
		metrics.Init()
	}

	args := flag.Args()[1:]
	switch flag.Arg(0) {
	case "hedge":
		err = runHedge(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cfg)
	case "decode":
		err = runDecode(args)
	case "expiry":
		err = runExpiry(cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.WithError(err).Error("hedgeflow failed")
		os.Exit(1)
	}
}

// checkSettings warns about configurations that are legal but suspicious.
func checkSettings(cfg *config.Config, env string, log *logger.Log) {
	h := cfg.Hedge
	if h.DocumentedDiscountFactor > 0 && h.DiscountFactor != h.DocumentedDiscountFactor {
		log.WithComponent("main").WithFields(logger.Fields{
			"discount_factor":            h.DiscountFactor,
			"documented_discount_factor": h.DocumentedDiscountFactor,
		}).Warn("strike discount factor differs from the documented value")
	}
	if config.IsProductionLike(env) && cfg.UsesTestnet() {
		log.WithComponent("main").WithFields(logger.Fields{
			"environment": env,
			"url":         cfg.Deribit.URL,
		}).Warn("production-like environment is configured against the exchange testnet")
	}
}
