package configuration

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"Chatline/internal/model"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// envPrefix is the prefix of every environment override, e.g.
// CHATLINE_MONGO_URI or CHATLINE_AUTH_JWT_SECRET.
const envPrefix = "chatline"

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type MongoConfig struct {
	Uri                string `json:"uri" envconfig:"uri"`
	Database           string `json:"database" envconfig:"database"`
	ChatsCollection    string `json:"chatsCollection" envconfig:"chats_collection"`
	MessagesCollection string `json:"messagesCollection" envconfig:"messages_collection"`
	UsersCollection    string `json:"usersCollection" envconfig:"users_collection"`
}

type ServerConfig struct {
	AppPort     int    `json:"app_port" envconfig:"app_port"`
	SocketPort  int    `json:"socket_port" envconfig:"socket_port"`
	SocketRoute string `json:"socketRoute" envconfig:"socket_route"`
}

type AuthConfig struct {
	JWTSecret      string `json:"jwt_secret" envconfig:"jwt_secret"`
	AccessTokenTTL int    `json:"access_token_ttl_minutes" envconfig:"access_token_ttl_minutes"`
}

// StoreConfig picks the chat store. The memory driver keeps everything in
// process and resolves profiles from Users.
type StoreConfig struct {
	Driver string       `json:"driver" envconfig:"driver"`
	Users  []model.User `json:"users" ignored:"true"`
}

type CorsConfig struct {
	AllowOrigins []string `json:"allow_origins" envconfig:"allow_origins"`
}

type RateLimitConfig struct {
	RequestsPerSecond uint `json:"requests_per_second" envconfig:"requests_per_second"`
}

type Config struct {
	Debug        bool            `json:"debug" envconfig:"debug"`
	ChatDatabase MongoConfig     `json:"mongo" envconfig:"mongo"`
	Server       ServerConfig    `json:"server" envconfig:"server"`
	Auth         AuthConfig      `json:"auth" envconfig:"auth"`
	Store        StoreConfig     `json:"store" envconfig:"store"`
	Cors         CorsConfig      `json:"cors" envconfig:"cors"`
	RateLimit    RateLimitConfig `json:"rateLimit" envconfig:"rate_limit"`
}

// LoadConfig reads the JSON file at configPath, then applies CHATLINE_*
// environment overrides. A .env file in the working directory is loaded
// first when present.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	if err := envconfig.Process(envPrefix, &config); err != nil {
		return nil, fmt.Errorf("apply environment: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMongo
	}
	if c.ChatDatabase.ChatsCollection == "" {
		c.ChatDatabase.ChatsCollection = "chats"
	}
	if c.ChatDatabase.MessagesCollection == "" {
		c.ChatDatabase.MessagesCollection = "messages"
	}
	if c.ChatDatabase.UsersCollection == "" {
		c.ChatDatabase.UsersCollection = "users"
	}
	if c.Server.SocketRoute == "" {
		c.Server.SocketRoute = "ws"
	}
	if c.Auth.AccessTokenTTL == 0 {
		c.Auth.AccessTokenTTL = 60
	}
	if c.RateLimit.RequestsPerSecond == 0 {
		c.RateLimit.RequestsPerSecond = 20
	}
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Store.Driver {
	case StoreMongo:
		if c.ChatDatabase.Uri == "" || c.ChatDatabase.Database == "" {
			return errors.New("mongo.uri and mongo.database are required for the mongo store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Server.AppPort == 0 || c.Server.SocketPort == 0 {
		return errors.New("server.app_port and server.socket_port are required")
	}
	return nil
}
