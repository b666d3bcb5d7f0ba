// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port        int    `env:"PORT,default=8080"`
	StoreDriver string `env:"STORE_DRIVER,default=postgres"`
	DatabaseDSN string `env:"DB_DSN"`
	DBMaxOpen   int    `env:"DB_MAX_OPEN_CONNS,default=20"`

	JWTSigningKey string `env:"JWT_SIGNING_KEY,required=true"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	AMQPURL         string `env:"AMQP_URL"`
	AMQPExchange    string `env:"AMQP_EXCHANGE,default=teamchat.events"`
	AuditRoutingKey string `env:"AUDIT_ROUTING_KEY,default=audit.events"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"SERVICE_NAME,default=teamchat-service"`
	Environment  string `env:"ENVIRONMENT,default=development"`

	SendBuffer         int           `env:"WS_SEND_BUFFER,default=256"`
	MaxMessageBytes    int64         `env:"WS_MAX_MESSAGE_BYTES,default=65536"`
	PingInterval       time.Duration `env:"WS_PING_INTERVAL,default=30s"`
	GatewayConcurrency int           `env:"GATEWAY_CONCURRENCY,default=16"`
	HistoryLimit       int           `env:"MESSAGE_HISTORY_LIMIT,default=50"`
	DebugRoutes        bool          `env:"DEBUG_ROUTES,default=false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWTSigningKey == "" {
		return errors.New("config: JWT_SIGNING_KEY is required")
	}
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseDSN == "" {
			return errors.New("config: DB_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("config: WS_SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("config: WS_PING_INTERVAL must be positive, got %s", c.PingInterval)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
