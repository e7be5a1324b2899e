package main

import (
	"context"
	"log"

	"cinema-ticketing/cmd"
	"cinema-ticketing/internal/adaptor"
	"cinema-ticketing/internal/data/repository"
	"cinema-ticketing/internal/gateway"
	"cinema-ticketing/internal/queue"
	"cinema-ticketing/internal/usecase"
	"cinema-ticketing/internal/wire"
	"cinema-ticketing/internal/worker"
	"cinema-ticketing/pkg/database"
	"cinema-ticketing/pkg/utils"

	"go.uber.org/zap"
)

func main() {
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := utils.InitLogger(config.App.LogPath, config.App.Debug)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	// Optional; booking creation degrades to unlimited when absent.
	rdb := database.InitRedis(config.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(config.RabbitMQ.URL, logger)
	paymentGateway := gateway.NewLogGateway(logger)

	repos := repository.NewRepository(db, logger)
	service := usecase.NewService(repos, config, logger, publisher, paymentGateway)

	expiryWorker := worker.NewExpiryWorker(worker.ExpiryWorkerConfig{
		ScanInterval: config.Reservation.SweepInterval,
		BatchSize:    config.Reservation.SweepBatchSize,
	}, service.Booking, repos.Seat, repos.Screening, logger)
	expiryWorker.Start(context.Background())
	defer expiryWorker.Stop()

	handler := adaptor.NewHandler(service, logger)
	app := wire.NewWiring(handler, config, rdb, logger).Build()

	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))

	if err := cmd.APIServer(app.Router, config.App.Port); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return
	}

	logger.Info("Server stopped")
}
