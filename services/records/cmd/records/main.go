package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"recordbook/internal/ratelimit"
	"recordbook/internal/util"
	"recordbook/pkg/queue"
	"recordbook/pkg/storage"
	"recordbook/pkg/store"
	"recordbook/services/records/internal/app"
	"recordbook/services/records/internal/config"
	"recordbook/services/records/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to RECORDS_CONFIG or config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("records service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storeTimeout, err := config.ParseStoreTimeout(cfg.StoreTimeout)
	if err != nil {
		return err
	}

	// One connection attempt; no retry.
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	recordStore, err := store.Connect(connectCtx, store.Options{
		Driver:     cfg.StoreDriver,
		URL:        cfg.StoreURL,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Timeout:    storeTimeout,
	})
	cancel()
	if err != nil {
		if cfg.StoreRequired() {
			return err
		}
		logger.Error("store connection failed; serving without a database", "driver", cfg.StoreDriver, "err", err)
		recordStore = nil
	} else {
		logger.Info("connected to store", "driver", cfg.StoreDriver, "database", cfg.Database, "collection", cfg.Collection)
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := recordStore.Close(closeCtx); err != nil {
				logger.Warn("store disconnect failed", "err", err)
			}
		}()
	}

	documents, err := newDocumentSource(cfg)
	if err != nil {
		return err
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		limiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "records:ratelimit:write", cfg.WriteRateLimitPerMinute, time.Minute)
		if err != nil {
			return err
		}
		defer limiter.Close()
	}
	var events app.EventFeed
	if cfg.EventStream != "" {
		stream, err := queue.NewRedisEventStream(queue.RedisEventStreamConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.EventStream,
			MaxLen:   cfg.EventStreamMaxLen,
		})
		if err != nil {
			return err
		}
		defer stream.Close()
		events = stream
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return err
	}

	appCore := app.New(app.Config{Store: recordStore, FilterCity: cfg.FilterCity, Events: events})
	httpServer, err := server.New(server.Config{
		App:            appCore,
		Documents:      documents,
		WriteLimiter:   limiter,
		TrustedProxies: trusted,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("records server listening", "addr", addr, "url", "http://localhost"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("records server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newDocumentSource(cfg config.FileConfig) (storage.DocumentSource, error) {
	if cfg.FrontendSource == "minio" {
		return storage.NewMinioSource(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewDirSource(cfg.StaticDir), nil
}
