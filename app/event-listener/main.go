package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/signumflex/go-event-listener/api"
	"github.com/signumflex/go-event-listener/business/domain/backfill"
	"github.com/signumflex/go-event-listener/business/domain/webhook"
	"github.com/signumflex/go-event-listener/entities"
	"github.com/signumflex/go-event-listener/external/ethereum"
	"github.com/signumflex/go-event-listener/infrastructure/store/eventstore"
	"github.com/signumflex/go-event-listener/infrastructure/store/pebbledb"
	"github.com/signumflex/go-event-listener/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const prefix = "SIGNUM_EVENT_LISTENER"

func main() {
	if err := run(); err != nil {
		log.Fatalf("main: exited with error: %s", err.Error())
	}
}

func run() error {
	config := zap.NewProductionConfig()
	// this is just for sugar, to display a readable date instead of an epoch time
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)

	logger, err := config.Build()
	if err != nil {
		return fmt.Errorf("creating logger: %v", err)
	}
	defer logger.Sync()
	sLogger := logger.Sugar()

	_ = godotenv.Load()

	var cfg struct {
		RpcUrl                 string        `conf:"default:https://rpc.pulsechain.com"`
		FlexContractAddress    string        `conf:"default:0x09D07923EA339A2aDe40f44BCEE74b2A88a99a54"`
		AutopayContractAddress string        `conf:"default:0x48C7A06cb36F6f0d575e083A4e844Ba08890e452"`
		ServerListenAddr       string        `conf:"default:0.0.0.0:3001"`
		MetricsListenAddr      string        `conf:"default:0.0.0.0:9999"`
		MetricsNamespace       string        `conf:"default:signum_event_listener"`
		InternalStoreFolder    string        `conf:"default:store"`
		ReportEventFile        string        `conf:"default:eventData.json"`
		TipEventFile           string        `conf:"default:eventData1.json"`
		StoreCapacity          int           `conf:"default:1000"`
		EventsCacheTtl         time.Duration `conf:"default:1s"`
		Backfill               struct {
			ReportFromBlock uint64        `conf:"default:21049876"`
			ReportToBlock   uint64        `conf:"optional"` // zero means latest
			TipFromBlock    uint64        `conf:"default:5240272"`
			TipToBlock      uint64        `conf:"default:5285029"`
			BatchSize       uint64        `conf:"default:10000"`
			MaxRetries      int           `conf:"default:5"`
			RetryDelay      time.Duration `conf:"default:5s"`
			QueryTimeout    time.Duration `conf:"default:30s"`
		}
	}

	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %v", err)
			}
			fmt.Println(usage)
			return nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %v", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %v", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %v", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	cursorStore, err := pebbledb.NewCursorStore(cfg.InternalStoreFolder)
	if err != nil {
		return fmt.Errorf("creating cursor store: %v", err)
	}
	defer cursorStore.Close()

	reportStore := eventstore.NewStore[entities.ReportEvent](cfg.ReportEventFile, "NewReport", cfg.StoreCapacity, sLogger)
	tipStore := eventstore.NewStore[entities.TipEvent](cfg.TipEventFile, "TipAdded", cfg.StoreCapacity, sLogger)

	ledgerClient, err := ethereum.NewClient(cfg.RpcUrl, cfg.FlexContractAddress, cfg.AutopayContractAddress)
	if err != nil {
		return fmt.Errorf("creating ledger client: %v", err)
	}

	decoder, err := ethereum.NewDecoder()
	if err != nil {
		return fmt.Errorf("creating decoder: %v", err)
	}

	m := metrics.NewMetrics(cfg.MetricsNamespace)

	scanner := backfill.NewScanner(ledgerClient, reportStore, tipStore, cursorStore, m, backfill.Config{
		ReportRange:  backfill.Range{From: cfg.Backfill.ReportFromBlock, To: cfg.Backfill.ReportToBlock},
		TipRange:     backfill.Range{From: cfg.Backfill.TipFromBlock, To: cfg.Backfill.TipToBlock},
		BatchSize:    cfg.Backfill.BatchSize,
		MaxRetries:   cfg.Backfill.MaxRetries,
		RetryDelay:   cfg.Backfill.RetryDelay,
		QueryTimeout: cfg.Backfill.QueryTimeout,
	}, sLogger)

	// The backfill does not gate the listener. A failed run is logged and the
	// service keeps serving webhook traffic without the missed history.
	go func() {
		if err := scanner.Run(context.Background()); err != nil {
			sLogger.Errorf("Backfill did not complete: %v", err)
			return
		}
		sLogger.Info("Backfill completed.")
	}()

	processor := webhook.NewProcessor(decoder, reportStore, tipStore, m, sLogger)
	handler := api.NewHandler(reportStore, processor, cfg.EventsCacheTtl, sLogger)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := &http.Server{
		Addr:         cfg.ServerListenAddr,
		Handler:      handler.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		sLogger.Infof("Server is running on [%s].", cfg.ServerListenAddr)
		serverErr <- server.ListenAndServe()
	}()

	metricsServerErr := make(chan error, 1)
	go func() {
		sLogger.Infof("Starting metrics server on [%s].", cfg.MetricsListenAddr)
		http.Handle("/metrics", promhttp.Handler())
		metricsServerErr <- http.ListenAndServe(cfg.MetricsListenAddr, nil)
	}()

	for {
		select {
		case <-shutdown:
			sLogger.Info("Received shutdown signal, shutting down...")
			return server.Shutdown(context.Background())
		case err := <-serverErr:
			return fmt.Errorf("server error: %v", err)
		case err := <-metricsServerErr:
			return fmt.Errorf("metrics server error: %v", err)
		}
	}
}
