package main

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 9090
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	defaultMongoURL  = "mongodb://localhost:27017"
	defaultDatabase  = "dreip"
	defaultBallotTTL = time.Hour
)

// Config holds the application configuration
type Config struct {
	API   APIConfig
	Mongo MongoConfig
	Log   LogConfig
	// HMACSecret signs the ballot receipts. Required.
	HMACSecret string `mapstructure:"hmacSecret"`
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host string `mapstructure:"host"` // API host address
	Port int    `mapstructure:"port"` // API port number
}

// MongoConfig holds the document store configuration
type MongoConfig struct {
	URL       string        `mapstructure:"url"`       // MongoDB connection string (replica set required)
	Database  string        `mapstructure:"database"`  // Database name
	BallotTTL time.Duration `mapstructure:"ballotTTL"` // TTL of unconfirmed ballots
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("mongo.url", defaultMongoURL)
	v.SetDefault("mongo.database", defaultDatabase)
	v.SetDefault("mongo.ballotTTL", defaultBallotTTL)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)

	flag.StringP("api.host", "h", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.StringP("mongo.url", "m", defaultMongoURL, "MongoDB connection string (replica set required)")
	flag.StringP("mongo.database", "d", defaultDatabase, "MongoDB database name")
	flag.Duration("mongo.ballotTTL", defaultBallotTTL, "TTL of unconfirmed ballots (i.e. 30m or 1h)")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.StringP("hmacSecret", "s", "", "secret for the receipt signatures (required)")
	flag.Parse()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Environment variables: DREIP_API_PORT, DREIP_MONGO_URL, ...
	v.SetEnvPrefix("DREIP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// validateConfig checks the configuration invariants that cannot default.
func validateConfig(cfg *Config) error {
	if cfg.HMACSecret == "" {
		return fmt.Errorf("hmacSecret is required")
	}
	if cfg.Mongo.URL == "" {
		return fmt.Errorf("mongo.url is required")
	}
	return nil
}
