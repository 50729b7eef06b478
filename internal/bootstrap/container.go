package bootstrap

import (
	"context"
	"log"

	"smart-supermarket/internal/capture"
	"smart-supermarket/internal/catalog"
	"smart-supermarket/internal/config"
	"smart-supermarket/internal/controller"
	"smart-supermarket/internal/handler"
	"smart-supermarket/internal/identity"
	"smart-supermarket/internal/journey"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/internal/recommendation"
	"smart-supermarket/internal/repository/contract"
	"smart-supermarket/internal/repository/implementation"
	"smart-supermarket/internal/repository/memory"
	"smart-supermarket/internal/service"
	"smart-supermarket/internal/session"
	"smart-supermarket/internal/websocket"
	"smart-supermarket/pkg/camera"
	pktNats "smart-supermarket/pkg/nats"
	"smart-supermarket/pkg/objectstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	JourneyController controller.IJourneyController
	StateHandler      *handler.StateHandler

	// Background Services (Exposed for main.go to run)
	AuditService service.IAuditService
	WebSocketHub *websocket.Hub

	Journey *journey.Journey
	Logger  logger.ILogger

	natsPub *pktNats.Publisher
	rdb     *redis.Client
	pubSub  *gochannel.GoChannel
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	auditLogger := logger.NewIsolatedLogger(cfg.App.AuditLogFilePath)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS (optional)
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
		}
	}

	// Redis (optional). Without it the user directory stays in memory and
	// websocket fan-out is local only.
	rdb := connectRedis(cfg.App.RedisURL)

	var directory contract.UserDirectoryRepository
	if rdb != nil {
		directory = implementation.NewUserDirectoryRepository(rdb)
		log.Printf("[INFO] Using user directory: REDIS")
	} else {
		directory = memory.NewUserDirectoryRepository()
		log.Printf("[INFO] Using user directory: MEMORY")
	}

	// Object store for captured photos
	var store objectstore.Store
	if cfg.Storage.Driver == "http" {
		store = objectstore.NewHTTPStore(cfg.Storage.HTTPEndpoint, cfg.Storage.PublicBaseURL, cfg.Services.Timeout)
		log.Printf("[INFO] Using object store: HTTP (%s)", cfg.Storage.HTTPEndpoint)
	} else {
		store = objectstore.NewDiskStore(cfg.Storage.DiskDir, cfg.Storage.PublicBaseURL)
		log.Printf("[INFO] Using object store: DISK (%s)", cfg.Storage.DiskDir)
	}

	// 4. Services
	device := camera.NewFileDevice(cfg.Camera.StillPath, cfg.Camera.PreviewDelay)
	cameraController := capture.NewController(device, sysLogger)

	identityService := identity.NewIdentityService(cfg.Services.IdentityURL, store, cfg.Services.Timeout, sysLogger)
	recommender := recommendation.NewRecommendationClient(cfg.Services.RecommenderURL, cfg.Services.Timeout, sysLogger)
	catalogLoader := catalog.NewLoader(cfg.Catalog.Source, cfg.Services.Timeout, sysLogger)

	publisherService := service.NewPublisherService(pubSub, journey.TopicTransitions)

	j := journey.New(journey.Deps{
		Sessions:    session.NewStore(),
		Camera:      cameraController,
		Identity:    identityService,
		Recommender: recommender,
		Catalog:     catalogLoader,
		Directory:   directory,
		Publisher:   publisherService,
		Logger:      sysLogger,
		Policy:      journey.ParseSignupPolicy(cfg.App.SignupPolicy),
	})

	var exporter service.EventExporter
	if natsPub != nil {
		exporter = natsPub
	}
	auditService := service.NewAuditService(pubSub, journey.TopicTransitions, auditLogger, exporter, sysLogger)

	// 5. WebSocket
	wsHub := websocket.NewHub(rdb, sysLogger)
	stateHandler := handler.NewStateHandler(j, wsHub, pubSub, journey.TopicTransitions, sysLogger)

	// 6. Controllers
	return &Container{
		JourneyController: controller.NewJourneyController(j, cfg.Recommendation.DefaultCount),
		StateHandler:      stateHandler,
		AuditService:      auditService,
		WebSocketHub:      wsHub,
		Journey:           j,
		Logger:            sysLogger,

		natsPub: natsPub,
		rdb:     rdb,
		pubSub:  pubSub,
	}
}

// Close releases the camera and every outbound connection.
func (c *Container) Close() {
	if err := c.Journey.Close(); err != nil {
		log.Printf("[WARN] Failed to close journey: %v", err)
	}
	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close event bus: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis: %v", err)
		}
	}
	_ = c.Logger.Sync()
}

func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: url,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}
