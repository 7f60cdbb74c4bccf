package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/retailpos/sales-service/config"
	"github.com/retailpos/sales-service/internal/money"
	"github.com/retailpos/sales-service/internal/pkg/broker"
	"github.com/retailpos/sales-service/internal/pkg/cache"
	"github.com/retailpos/sales-service/internal/pkg/logger"
	"github.com/retailpos/sales-service/internal/pkg/postgres"
	"github.com/retailpos/sales-service/internal/pkg/search"

	invListenerPkg "github.com/retailpos/sales-service/internal/inventory/listener"
	invRepoPkg "github.com/retailpos/sales-service/internal/inventory/repository"
	invUCPkg "github.com/retailpos/sales-service/internal/inventory/usecase"

	invoiceRepoPkg "github.com/retailpos/sales-service/internal/invoice/repository"
	invoiceUCPkg "github.com/retailpos/sales-service/internal/invoice/usecase"

	prodListenerPkg "github.com/retailpos/sales-service/internal/product/listener"
	prodRepoPkg "github.com/retailpos/sales-service/internal/product/repository"
	prodUCPkg "github.com/retailpos/sales-service/internal/product/usecase"

	saleListenerPkg "github.com/retailpos/sales-service/internal/sale/listener"
	saleRepoPkg "github.com/retailpos/sales-service/internal/sale/repository"
	saleUCPkg "github.com/retailpos/sales-service/internal/sale/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.Config{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}
	if cfg.Server.AppEnv == "dev" || cfg.Server.AppEnv == "development" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to PostgreSQL database", zap.String("db_name", cfg.Postgres.DBName))

	// 4. Initialize Redis
	redisClient, err := cache.NewRedisClient(&cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))

	// 5. Initialize Kafka Consumers
	salesConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.SalesTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer salesConsumer.Close()
	inventoryConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.InventoryTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer inventoryConsumer.Close()
	catalogConsumer := broker.NewConsumer(&broker.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.CatalogTopic,
		GroupID: cfg.Kafka.GroupID,
	})
	defer catalogConsumer.Close()
	appLogger.Info("Connected to Kafka", zap.Strings("brokers", cfg.Kafka.Brokers))

	// 6. Initialize Elasticsearch
	esClient, err := search.NewClient(&search.Config{
		Addresses: cfg.Elastic.Addresses,
		Username:  cfg.Elastic.Username,
		Password:  cfg.Elastic.Password,
	})
	if err != nil {
		appLogger.Warn("Could not connect to Elasticsearch (Search features might be limited)", zap.Error(err))
		esClient = nil
	} else {
		appLogger.Info("Connected to Elasticsearch", zap.Strings("addresses", cfg.Elastic.Addresses))
	}

	// 7. Initialize Repositories
	prodRepo := prodRepoPkg.NewPGRepository(db)
	invRepo := invRepoPkg.NewPGRepository(db)
	invoiceRepo := invoiceRepoPkg.NewPGRepository(db)
	saleRepo := saleRepoPkg.NewPGRepository(db)

	// 8. Initialize UseCases
	rounder := money.NewRounder(int32(cfg.Sales.CurrencyPlaces))
	prodUC := prodUCPkg.NewProductUseCase(prodRepo, redisClient, esClient, appLogger)
	invUC := invUCPkg.NewInventoryUseCase(invRepo, prodRepo, redisClient, appLogger)
	invoiceUC := invoiceUCPkg.NewInvoiceUseCase(invoiceRepo, rounder, appLogger)
	saleUC := saleUCPkg.NewSaleUseCase(
		saleRepo,
		saleRepo,
		prodRepo,
		invUC,
		invoiceRepo,
		redisClient,
		rounder,
		saleUCPkg.Policy{
			AllowCreditSales: cfg.Sales.AllowCreditSales,
			InvoiceDueDays:   cfg.Sales.InvoiceDueDays,
		},
		appLogger,
	)
	// 9. Start Listeners
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go saleListenerPkg.NewSaleListener(salesConsumer, saleUC, appLogger).Start(ctx)
	go invListenerPkg.NewInventoryListener(inventoryConsumer, invUC, appLogger).Start(ctx)
	go prodListenerPkg.NewCatalogListener(catalogConsumer, prodUC, appLogger).Start(ctx)

	// 10. Background sweeps: expired batches and overdue invoices.
	go func() {
		interval := time.Duration(cfg.Sales.ExpirySweepMinutes) * time.Minute
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := invUC.MarkExpiredBatches(ctx, now); err != nil {
					appLogger.Error("Expired batch sweep failed", zap.Error(err))
				}
				if _, err := invoiceUC.MarkOverdue(ctx, now); err != nil {
					appLogger.Error("Overdue invoice sweep failed", zap.Error(err))
				}
			}
		}
	}()

	appLogger.Info("Sales service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()
	appLogger.Info("Server stopped")
}
