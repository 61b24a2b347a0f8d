package models

import "time"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Engine   EngineConfig
	Keeper   KeeperConfig
	Events   EventsConfig
	Api      ApiConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// EngineConfig holds escrow engine settings
type EngineConfig struct {
	HoldingAccount string
	DefaultAsset   string
	AssetsFile     string
}

// KeeperConfig holds subscription keeper settings
type KeeperConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	ChargesPerSecond int
}

// EventsConfig selects and configures the notification sink
type EventsConfig struct {
	Backend            string // log, amqp, redis
	AmqpUrl            string
	AmqpExchange       string
	RedisUrl           string
	RedisChannelPrefix string
	BreakerFailures    int
	BreakerTimeout     time.Duration
}

// ApiConfig holds HTTP API settings
type ApiConfig struct {
	ListenAddr  string
	TokenSecret string
	TokenTtl    time.Duration
}
