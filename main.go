package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pear/internal/config"
	"pear/internal/handlers"
	"pear/internal/middleware"
	"pear/internal/models"
	"pear/internal/repositories"
	"pear/internal/services"
	"pear/pkg/kafka"
	"pear/pkg/metrics"
	"pear/pkg/rabbitmq"
	"pear/pkg/textgen"
	"pear/pkg/tracing"
)

// App is the wired service.
type App struct {
	Fiber  *fiber.App
	Config config.Config
	DB     *gorm.DB
	Auth   *services.AuthService
	Orders *services.OrderService

	closers []func() error
}

// NewApp connects storage and the event broker, seeds the catalog and the
// admin account and registers every route.
func NewApp(cfg config.Config) (*App, error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.Product{}, &models.Admin{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	a := &App{Config: cfg, DB: db}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	serverMetrics := metrics.NewServerMetrics(registry)
	orderMetrics := metrics.NewOrderMetrics(registry)

	// --- Repositories ---
	productRepo := repositories.NewGORMProductRepository(db)
	adminRepo := repositories.NewGORMAdminRepository(db)
	orderRepo := repositories.NewMemoryOrderRepository()

	// --- Text generation and message providers ---
	gen := textgen.NewClient(textgen.Config{
		URL:     cfg.TextGenURL,
		APIKey:  cfg.TextGenAPIKey,
		Model:   cfg.TextGenModel,
		Timeout: cfg.TextGenTimeout,
	})
	var provider services.MessageProvider
	if cfg.MessageProvider == config.ProviderRemote {
		provider = services.NewRemoteMessageProvider(gen)
	} else {
		provider = services.NewLocalMessageProvider(cfg.LocalProviderLatency)
	}

	// --- Event broker ---
	publisher, err := a.connectBroker(cfg)
	if err != nil {
		return nil, err
	}

	// --- Services ---
	productService := services.NewProductService(productRepo, services.NewTextDescriptionGenerator(gen))
	authService := services.NewAuthService(adminRepo, cfg.JWTSecret, cfg.TokenTTL)
	engine := services.NewStatusEngine(provider,
		services.WithDelays(cfg.StatusBaseDelay, cfg.StatusJitterMin, cfg.StatusJitterMax),
		services.WithMessageTimeout(cfg.StatusMessageTimeout),
		services.WithEngineMetrics(orderMetrics),
	)
	orderService := services.NewOrderService(orderRepo, productRepo, engine, publisher, orderMetrics)
	a.Auth = authService
	a.Orders = orderService

	if cfg.SeedCatalog {
		if _, err := productService.SeedCatalog(); err != nil {
			return nil, err
		}
	}
	if err := authService.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return nil, err
	}

	// --- Fiber ---
	app := fiber.New(fiber.Config{AppName: cfg.ServiceName})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.Metrics(serverMetrics))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"broker": cfg.EventBroker,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(registry)))

	apiV1 := app.Group("/api/v1")
	handlers.NewAuthHandler(authService).RegisterRoutes(apiV1)
	handlers.NewProductHandler(productService).RegisterRoutes(apiV1, middleware.AdminRequired(authService))
	handlers.NewOrderHandler(provider, cfg.StatusMessageTimeout).RegisterRoutes(apiV1)
	handlers.NewSessionHandler(orderService).RegisterRoutes(apiV1)

	a.Fiber = app
	return a, nil
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseDSN)
	default:
		dialector = sqlite.Open(cfg.DatabaseDSN)
	}
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// connectBroker returns the order event publisher for cfg.EventBroker, nil
// when events are disabled.
func (a *App) connectBroker(cfg config.Config) (services.EventPublisher, error) {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{
			URL:      cfg.RabbitMQURL,
			Exchange: cfg.RabbitMQExchange,
			Queue:    cfg.RabbitMQQueue,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RabbitMQ client: %w", err)
		}
		a.closers = append(a.closers, mqClient.Close)

		err = mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
			return services.HandleOrderEvent(msg.Body)
		})
		if err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
		return services.NewBrokerPublisher(mqClient, services.RouteByType), nil

	case config.BrokerKafka:
		producer, err := kafka.NewProducer(kafka.Config{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.KafkaTopic,
			ClientID: cfg.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Kafka producer: %w", err)
		}
		a.closers = append(a.closers, producer.Close)
		return services.NewBrokerPublisher(producer, services.KeyByOrder), nil
	}
	return nil, nil
}

// Shutdown stops the HTTP server, cancels running progressions and closes
// the broker connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Fiber != nil {
		if err := a.Fiber.ShutdownWithContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("fiber shutdown: %w", err))
		}
	}
	if a.Orders != nil {
		if err := a.Orders.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ExporterURL: cfg.OTELExporterURL,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer shutdownTracer()

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Fiber.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
