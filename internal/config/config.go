package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		JWT        JWT        `yaml:"jwt"`
		Logger     Logger     `yaml:"logger"`
		CBR        CBR        `yaml:"cbr"`
		Rates      Rates      `yaml:"rates"`
		Webhook    Webhook    `yaml:"webhook"`
		Notify     Notify     `yaml:"notify"`
		Limits     Limits     `yaml:"limits"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
		// Honour X-Forwarded-For and X-Real-IP when resolving the client address.
		TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"TRUST_PROXY_HEADERS" env-default:"false"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for JWT verification of admin requests.
	JWT struct {
		// JWT signing key shared with the authentication service.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
	}
	// Config for the central bank daily rates source.
	CBR struct {
		// Daily rates document URL.
		URL string `yaml:"url" env:"CBR_URL" env-default:"https://www.cbr.ru/scripts/XML_daily.asp"`
		// Request timeout.
		Timeout time.Duration `yaml:"timeout" env:"CBR_TIMEOUT" env-default:"15s"`
		// Minimal interval between two outbound requests.
		MinInterval time.Duration `yaml:"min_interval" env-default:"2s"`
	}
	// Config for the scheduled rates refresh.
	Rates struct {
		// Interval between scheduled refreshes. Zero disables the scheduler.
		RefreshInterval time.Duration `yaml:"refresh_interval" env:"RATES_REFRESH_INTERVAL" env-default:"24h"`
		// Refresh once right after the server starts.
		RefreshOnStart bool `yaml:"refresh_on_start" env:"RATES_REFRESH_ON_START" env-default:"true"`
	}
	// Config for the payment provider webhook.
	Webhook struct {
		// Provider egress addresses, single IPs or CIDRs.
		AllowedNetworks []string `yaml:"allowed_networks" env:"WEBHOOK_ALLOWED_NETWORKS" env-separator:","`
	}
	// Config for payment confirmation notifications.
	Notify struct {
		// Kafka brokers, comma separated. Empty means log-only delivery.
		KafkaBrokers string `yaml:"kafka_brokers" env:"KAFKA_BROKERS"`
		// Topic for payment confirmation events.
		Topic string `yaml:"topic" env:"KAFKA_NOTIFY_TOPIC" env-default:"shop.payment.confirmed"`
		// Background senders count.
		Workers int `yaml:"workers" env-default:"2"`
		// Pending notifications buffer.
		QueueSize int `yaml:"queue_size" env-default:"256"`
		// Single send timeout.
		SendTimeout time.Duration `yaml:"send_timeout" env-default:"10s"`
	}
	// Fixed window limits per scope.
	Limits struct {
		Rates    Limit `yaml:"rates"`
		Shipping Limit `yaml:"shipping"`
		// How often expired windows are swept.
		SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	}
	Limit struct {
		Requests int           `yaml:"requests" env-default:"10"`
		Window   time.Duration `yaml:"window" env-default:"1m"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")
	address := flag.String("a", "", "server startup address")
	dsn := flag.String("d", "", "server data source name")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	// Flags override the file, environment overrides both.
	if *address != "" {
		cfg.HTTPServer.Address = *address
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if err = cleanenv.ReadEnv(cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	return cfg
}

// Load reads the YAML file at path and then the environment. A missing
// file is not an error: defaults and environment are used instead.
func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
		if err = cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("read environment variables: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return &cfg, nil
}
