package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"charchat/internal/adapter/repo"
	"charchat/internal/dispatch"
	"charchat/internal/http/handlers"
	"charchat/internal/http/httpapi"
	"charchat/internal/infra"
	"charchat/internal/llm"
	"charchat/internal/queue"
	"charchat/internal/storage"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init artifact storage")
	}

	var connector queue.Connector
	switch cfg.QueueDriver {
	case "redis":
		connector = queue.NewRedisConnector(queue.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		connector = queue.NewAMQPConnector(queue.AMQPConfig{
			Host:     cfg.BrokerHost,
			Port:     cfg.BrokerPort,
			User:     cfg.BrokerUser,
			Password: cfg.BrokerPassword,
		})
	}

	dispatcher, err := dispatch.New(dispatch.Config{
		Connector:          connector,
		ImageRequestQueue:  cfg.ImageRequestQueue,
		ImageResponseQueue: cfg.ImageResponseQueue,
		TTSRequestQueue:    cfg.TTSRequestQueue,
		TTSResponseQueue:   cfg.TTSResponseQueue,
		MaxWait:            cfg.DispatchMaxWait,
		PollInterval:       cfg.DispatchPollInterval,
		Mode:               dispatch.Mode(cfg.DispatchMode),
		Logger:             logger,
		Store:              store,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init dispatch client")
	}
	defer dispatcher.Close()

	app := &handlers.App{
		Log:        logger,
		Characters: repo.NewCharacterRepository(dbpool),
		Rooms:      repo.NewRoomRepository(dbpool),
		ChatLogs:   repo.NewChatLogRepository(dbpool),
		Catalog:    repo.NewCatalogRepository(dbpool),
		LLM:        llm.NewClient(cfg.LLMServerURL, cfg.LLMTimeout),
		Gen:        dispatcher,
	}

	router := httpapi.NewRouter(cfg, logger, app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
