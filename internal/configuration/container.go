package configuration

import (
	"context"
	"fmt"
	"time"

	"Chatline/internal/auth"
	"Chatline/internal/db"
	"Chatline/internal/handler"
	"Chatline/internal/hub"
	"Chatline/internal/repo"
	"Chatline/internal/service"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Container struct {
	ChatHandler    handler.ChatHandler
	MonitorHandler handler.MonitorHandler
	Hub            *hub.Hub
	Verifier       auth.Verifier
	Config         Config
	Logger         *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(config.Debug)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger.Info("config loaded",
		zap.String("store", config.Store.Driver),
		zap.Int("app_port", config.Server.AppPort),
		zap.Int("socket_port", config.Server.SocketPort),
	)

	var (
		store     repo.ChatStore
		directory repo.UserDirectory
		con       *mongo.Database
	)

	switch config.Store.Driver {
	case StoreMongo:
		con, err = db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}

		mongoStore := repo.NewMongoStore(con, config.ChatDatabase.ChatsCollection, config.ChatDatabase.MessagesCollection, logger)
		if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
			return nil, fmt.Errorf("ensure indexes: %w", err)
		}
		store = mongoStore
		directory = repo.NewUserRepository(con, config.ChatDatabase.UsersCollection, logger)
	case StoreMemory:
		store = repo.NewMemoryStore()
		directory = repo.NewStaticDirectory(config.Store.Users)
	}

	verifier := auth.NewJWT(config.Auth.JWTSecret, time.Duration(config.Auth.AccessTokenTTL)*time.Minute)
	presence := hub.NewPresence()
	tracker := service.NewDeliveryTracker(store, presence)
	chatService := service.NewChatService(store, directory, tracker, logger)

	h := hub.NewHub(chatService, presence, verifier, config.Cors.AllowOrigins, logger)

	return &Container{
		ChatHandler:    handler.NewChatHandler(chatService, h, logger),
		MonitorHandler: handler.NewMonitorHandler(hub.NewMonitorService(h)),
		Hub:            h,
		Verifier:       verifier,
		Config:         *config,
		Logger:         logger,
		mongoClient:    con,
	}, nil
}

// Close releases what the container opened. The hub is stopped by the server
// shutdown sequence.
func (c *Container) Close() error {
	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
