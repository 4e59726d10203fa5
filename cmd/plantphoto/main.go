package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/plantphoto/internal/analyzer"
	"github.com/aliskhannn/plantphoto/internal/api/handlers/photo"
	"github.com/aliskhannn/plantphoto/internal/api/router"
	"github.com/aliskhannn/plantphoto/internal/api/server"
	"github.com/aliskhannn/plantphoto/internal/config"
	"github.com/aliskhannn/plantphoto/internal/infra/kafka/consumer"
	"github.com/aliskhannn/plantphoto/internal/infra/kafka/producer"
	photomsg "github.com/aliskhannn/plantphoto/internal/kafka/handlers/photo"
	"github.com/aliskhannn/plantphoto/internal/processor"
	photorepo "github.com/aliskhannn/plantphoto/internal/repository/photo"
	photosvc "github.com/aliskhannn/plantphoto/internal/service/photo"
	"github.com/aliskhannn/plantphoto/internal/storage/file"
)

const defaultConfigPath = "./config/config.yml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cfg := config.MustLoad(configPath)

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	strategy := cfg.Retry.Strategy()

	storage, err := file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
	}

	// The same analyzer serves synchronous checks and queued photos.
	a := analyzer.New(cfg.Analyzer)

	repo := photorepo.NewRepository(db)
	p := producer.New(&cfg.Kafka, strategy)
	proc := processor.New(storage)
	service := photosvc.NewService(repo, storage, p, proc, a, cfg.Upload.MaxBytes)

	c := consumer.New(&cfg.Kafka, strategy, photomsg.NewUploadedHandler(service))

	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	s := server.New(cfg.Server, router.Setup(photo.NewHandler(service)))
	go func() {
		zlog.Logger.Info().Msgf("listening on %s", cfg.Server.HTTPPort)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// The consumer finishes the photo it is analyzing before returning.
	wg.Wait()

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}
	for i, s := range db.Slaves {
		if err := s.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := p.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer")
	}
	if err := c.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer")
	}
}
