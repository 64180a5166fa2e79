package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emmanuelzz0/queezy/config"
	"github.com/emmanuelzz0/queezy/internal/archive"
	"github.com/emmanuelzz0/queezy/internal/avatar"
	"github.com/emmanuelzz0/queezy/internal/catalog"
	"github.com/emmanuelzz0/queezy/internal/eventbus"
	"github.com/emmanuelzz0/queezy/internal/gameengine"
	"github.com/emmanuelzz0/queezy/internal/handlers"
	"github.com/emmanuelzz0/queezy/internal/questionpipeline"
	"github.com/emmanuelzz0/queezy/internal/roomcode"
	"github.com/emmanuelzz0/queezy/internal/roommanager"
	"github.com/emmanuelzz0/queezy/internal/roomstore"
	"github.com/emmanuelzz0/queezy/internal/router"
	"github.com/emmanuelzz0/queezy/internal/timerregistry"
	"github.com/emmanuelzz0/queezy/pkg/cache"
	"github.com/emmanuelzz0/queezy/pkg/database"
	"github.com/emmanuelzz0/queezy/pkg/messaging"
)

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis")
	defer redisClient.Close()

	pgClient, err := database.NewPostgresClient(&cfg.Catalog)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	log.Println("Connected to PostgreSQL")
	defer pgClient.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := pgClient.InitSchema(initCtx); err != nil {
		log.Printf("Warning: failed to initialize catalog schema: %v", err)
	} else {
		log.Println("Catalog schema initialized")
	}
	cancel()

	mqClient, err := messaging.NewRabbitMQClient(&cfg.Archive)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	log.Println("Connected to RabbitMQ")
	defer mqClient.Close()

	store := roomstore.New(redisClient)
	issuer := roomcode.New(store)
	avatars := avatar.NewRegistry()
	timers := timerregistry.New()
	cat := catalog.NewPostgres(pgClient)

	// QuestionProvider (AI-backed generation) is an external collaborator
	// this engine only consumes through an interface; no concrete
	// implementation ships here, so QuestionPipeline runs Catalog-only
	// until one is wired in.
	pipeline := questionpipeline.New(cat, nil, cfg.Game.ProviderTimeout)
	arc := archive.NewRabbitMQ(mqClient)

	dispatcher := &lazyDispatcher{}
	bus := eventbus.NewBus(dispatcher)
	go bus.Run()
	log.Println("EventBus started")

	rooms := roommanager.New(store, issuer, avatars, bus)
	engine := gameengine.New(store, bus, timers, pipeline, arc, avatars, cfg.Game)
	dispatcher.rt = router.New(rooms, engine, cfg.Game.HostReconnectWindow)

	var ready atomic.Bool
	ready.Store(true)

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	engineRouter := gin.New()
	engineRouter.Use(gin.Logger())
	engineRouter.Use(gin.Recovery())

	engineRouter.GET("/health", handlers.Health)
	engineRouter.GET("/ready", handlers.Ready(ready.Load))

	wsHandler := handlers.NewWebSocketHandler(bus)
	engineRouter.GET("/ws", wsHandler.HandleWebSocket)

	httpAddr := ":" + cfg.Server.HTTPPort
	log.Printf("queezy engine HTTP server starting on port %s...", cfg.Server.HTTPPort)

	go func() {
		if err := engineRouter.Run(httpAddr); err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("queezy engine stopped")
}

// lazyDispatcher breaks the construction cycle between Bus (which needs
// a Dispatcher at NewBus time) and Router (which needs the Bus-backed
// RoomManager/GameEngine already built). It forwards to rt once set,
// which happens before bus.Run's goroutine can process any message.
type lazyDispatcher struct {
	rt *router.Router
}

func (d *lazyDispatcher) Dispatch(msg *eventbus.InboundMessage) {
	d.rt.Dispatch(msg)
}

func (d *lazyDispatcher) OnDisconnect(socket *eventbus.Socket) {
	d.rt.OnDisconnect(socket)
}
