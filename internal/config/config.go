/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @notes
 * - The checksum secret is loaded here and injected into the verifier at
 *   construction time; nothing else in the codebase reads it ambiently.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	MigrationsPath       string `mapstructure:"MIGRATIONS_PATH"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	ChecksumKey          string `mapstructure:"CHECKSUM_KEY"`
	TrustedOriginHeader  string `mapstructure:"TRUSTED_ORIGIN_HEADER"`

	// GatewayFailurePercent is the nominal decline probability applied to
	// every simulated gateway call.
	GatewayFailurePercent int `mapstructure:"GATEWAY_FAILURE_PERCENT"`

	// TransactionCreateRateLimitPerMinute caps transaction creations per user
	// per minute; zero disables limiting.
	TransactionCreateRateLimitPerMinute int `mapstructure:"TRANSACTION_CREATE_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MIGRATIONS_PATH", "migrations")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ytlpay:rate_limit")
	viper.SetDefault("GATEWAY_FAILURE_PERCENT", 25)
	viper.SetDefault("TRANSACTION_CREATE_RATE_LIMIT_PER_MINUTE", 60)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("MIGRATIONS_PATH")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("CHECKSUM_KEY")
	_ = viper.BindEnv("TRUSTED_ORIGIN_HEADER")
	_ = viper.BindEnv("GATEWAY_FAILURE_PERCENT")
	_ = viper.BindEnv("TRANSACTION_CREATE_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.ChecksumKey = strings.TrimSpace(config.ChecksumKey)
	config.TrustedOriginHeader = strings.TrimSpace(config.TrustedOriginHeader)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ytlpay:rate_limit"
	}

	if config.GatewayFailurePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative gateway failure percent configured; coercing to zero\" percent=%d", config.GatewayFailurePercent)
		config.GatewayFailurePercent = 0
	}
	if config.GatewayFailurePercent > 100 {
		log.Printf("level=warn component=config msg=\"gateway failure percent too high; capping at 100\" percent=%d", config.GatewayFailurePercent)
		config.GatewayFailurePercent = 100
	}
	if config.TransactionCreateRateLimitPerMinute < 0 {
		config.TransactionCreateRateLimitPerMinute = 0
	}

	return
}
