package config

import "time"

// Messaging definition messaging_service YAML structure
type Messaging struct {
	Port       string         `mapstructure:"port"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Crypto     CryptoConfig   `mapstructure:"crypto"`
	JWT        JWTConfig      `mapstructure:"jwt"`
	Realtime   RealtimeConfig `mapstructure:"realtime"`
}

// RedisConfig definition redis setting
//
// Addr is used for a single node; when empty the sentinel settings from .env are used.
type RedisConfig struct {
	RedisDB int    `mapstructure:"redis_db"`
	Addr    string `mapstructure:"addr"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// CryptoConfig message at-rest encryption
type CryptoConfig struct {
	Secret string `mapstructure:"secret"`
	// Mode "random" (nonce per message) or "fixed" (deterministic, leaks equal plaintexts)
	Mode string `mapstructure:"mode"`
}

// JWTConfig token verification
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// RealtimeConfig fan-out channel
type RealtimeConfig struct {
	// Driver "local" (single node hub) or "redis" (pub/sub across nodes)
	Driver       string        `mapstructure:"driver"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// RealtimeDriver names
const (
	RealtimeLocal = "local"
	RealtimeRedis = "redis"
)
