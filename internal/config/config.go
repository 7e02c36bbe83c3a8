package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTesting     Environment = "testing"
)

func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvProduction, EnvTesting:
		return true
	}
	return false
}

type Config struct {
	Server   Server
	Database Database
	Cache    Cache
	Tokens   Tokens
	Keys     Keys
	Issuer   string
}

type Server struct {
	Port           int
	Environment    Environment
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

type Database struct {
	URL             string
	MaxOpenConns    int32
	MaxIdleConns    int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type Cache struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
	ClientTTL     time.Duration
	MemoryTTL     time.Duration
}

// Tokens carries the fixed lifetime contract: 600s codes, 3600s access
// tokens, 30 day refresh tokens. The envs exist for test deployments only.
type Tokens struct {
	AuthorizationCodeTTL time.Duration
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	RevokedRetention     time.Duration
	CleanupInterval      time.Duration
}

type Keys struct {
	PrivateKeyPEMFile string
	ActiveKID         string
	RSABits           int
}

// GetIssuer returns the configured issuer or constructs one from server config.
func (c Config) GetIssuer() string {
	if c.Issuer != "" {
		return c.Issuer
	}

	scheme := "http"
	if c.Server.IsProduction() {
		scheme = "https"
	}
	return fmt.Sprintf("%s://localhost:%d", scheme, c.Server.Port)
}

// Load loads configuration from the environment with proper error handling.
func Load() (Config, error) {
	var config Config
	var err error

	config.Server.Port, err = getEnvIntSafe("SERVER_PORT", 8080, false)
	if err != nil {
		return config, fmt.Errorf("server port config error: %w", err)
	}

	config.Server.Environment, err = getEnvEnvironmentSafe("SERVER_ENVIRONMENT", EnvDevelopment, false)
	if err != nil {
		return config, fmt.Errorf("server environment config error: %w", err)
	}

	config.Server.ReadTimeout, err = getEnvDurationSafe("SERVER_READ_TIMEOUT", 15*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server read timeout config error: %w", err)
	}

	config.Server.WriteTimeout, err = getEnvDurationSafe("SERVER_WRITE_TIMEOUT", 15*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server write timeout config error: %w", err)
	}

	config.Server.IdleTimeout, err = getEnvDurationSafe("SERVER_IDLE_TIMEOUT", 60*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server idle timeout config error: %w", err)
	}

	config.Server.MaxHeaderBytes, err = getEnvIntSafe("SERVER_MAX_HEADER_BYTES", 1<<20, false)
	if err != nil {
		return config, fmt.Errorf("server max header bytes config error: %w", err)
	}

	config.Server.RateLimitEnabled, err = getEnvBoolSafe("RATE_LIMIT_ENABLED", true, false)
	if err != nil {
		return config, fmt.Errorf("rate limit enabled config error: %w", err)
	}

	config.Server.RateLimitRequests, err = getEnvIntSafe("RATE_LIMIT_REQUESTS", 60, false)
	if err != nil {
		return config, fmt.Errorf("rate limit requests config error: %w", err)
	}

	config.Server.RateLimitWindow, err = getEnvDurationSafe("RATE_LIMIT_WINDOW", time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("rate limit window config error: %w", err)
	}

	config.Database.URL, err = getEnvStringSafe("DB_URL", "", true)
	if err != nil {
		return config, fmt.Errorf("database URL config error: %w", err)
	}

	config.Database.MaxOpenConns, err = getEnvInt32Safe("DB_MAX_OPEN_CONNS", 25, false)
	if err != nil {
		return config, fmt.Errorf("database max open conns config error: %w", err)
	}

	config.Database.MaxIdleConns, err = getEnvInt32Safe("DB_MAX_IDLE_CONNS", 5, false)
	if err != nil {
		return config, fmt.Errorf("database max idle conns config error: %w", err)
	}

	config.Database.ConnMaxLifetime, err = getEnvDurationSafe("DB_CONN_MAX_LIFETIME", 5*time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("database conn max lifetime config error: %w", err)
	}

	config.Database.ConnMaxIdleTime, err = getEnvDurationSafe("DB_CONN_MAX_IDLE_TIME", 5*time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("database conn max idle time config error: %w", err)
	}

	config.Cache.Enabled, err = getEnvBoolSafe("CACHE_ENABLED", true, false)
	if err != nil {
		return config, fmt.Errorf("cache enabled config error: %w", err)
	}

	config.Cache.RedisAddr, err = getEnvStringSafe("REDIS_ADDR", "localhost:6379", false)
	if err != nil {
		return config, fmt.Errorf("Redis address config error: %w", err)
	}

	config.Cache.RedisPassword, err = getEnvStringSafe("REDIS_PASSWORD", "", false)
	if err != nil {
		return config, fmt.Errorf("Redis password config error: %w", err)
	}

	config.Cache.RedisDB, err = getEnvIntSafe("REDIS_DB", 0, false)
	if err != nil {
		return config, fmt.Errorf("Redis DB config error: %w", err)
	}

	config.Cache.RedisPoolSize, err = getEnvIntSafe("REDIS_POOL_SIZE", 10, false)
	if err != nil {
		return config, fmt.Errorf("Redis pool size config error: %w", err)
	}

	config.Cache.ClientTTL, err = getEnvDurationSafe("CACHE_CLIENT_TTL", 30*time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("cache client TTL config error: %w", err)
	}

	config.Cache.MemoryTTL, err = getEnvDurationSafe("CACHE_MEMORY_TTL", 5*time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("cache memory TTL config error: %w", err)
	}

	config.Tokens.AuthorizationCodeTTL, err = getEnvDurationSafe("TOKEN_CODE_TTL", 10*time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("authorization code TTL config error: %w", err)
	}

	config.Tokens.AccessTokenTTL, err = getEnvDurationSafe("TOKEN_ACCESS_TTL", time.Hour, false)
	if err != nil {
		return config, fmt.Errorf("access token TTL config error: %w", err)
	}

	config.Tokens.RefreshTokenTTL, err = getEnvDurationSafe("TOKEN_REFRESH_TTL", 30*24*time.Hour, false)
	if err != nil {
		return config, fmt.Errorf("refresh token TTL config error: %w", err)
	}

	config.Tokens.RevokedRetention, err = getEnvDurationSafe("TOKEN_REVOKED_RETENTION", 30*24*time.Hour, false)
	if err != nil {
		return config, fmt.Errorf("revoked retention config error: %w", err)
	}

	config.Tokens.CleanupInterval, err = getEnvDurationSafe("TOKEN_CLEANUP_INTERVAL", time.Hour, false)
	if err != nil {
		return config, fmt.Errorf("cleanup interval config error: %w", err)
	}

	config.Keys.PrivateKeyPEMFile, err = getEnvStringSafe("KEYS_PRIVATE_PEM_FILE", "", false)
	if err != nil {
		return config, fmt.Errorf("private key PEM file config error: %w", err)
	}

	config.Keys.ActiveKID, err = getEnvStringSafe("KEYS_ACTIVE_KID", "", false)
	if err != nil {
		return config, fmt.Errorf("active key ID config error: %w", err)
	}

	config.Keys.RSABits, err = getEnvIntSafe("KEYS_RSA_BITS", 2048, false)
	if err != nil {
		return config, fmt.Errorf("RSA key size config error: %w", err)
	}

	config.Issuer, err = getEnvStringSafe("ISSUER_URL", "", false)
	if err != nil {
		return config, fmt.Errorf("issuer URL config error: %w", err)
	}

	return config, nil
}

func getEnvStringSafe(key, defaultValue string, required bool) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return "", fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	return value, nil
}

func getEnvIntSafe(key string, defaultValue int, required bool) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return 0, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvInt32Safe(key string, defaultValue int32, required bool) (int32, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return 0, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := strconv.ParseInt(valueStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return int32(value), nil
}

func getEnvDurationSafe(key string, defaultValue time.Duration, required bool) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return 0, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a valid duration: %w", key, err)
	}
	return value, nil
}

func getEnvBoolSafe(key string, defaultValue bool, required bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return false, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("environment variable %s must be a valid boolean: %w", key, err)
	}
	return value, nil
}

func getEnvEnvironmentSafe(key string, defaultValue Environment, required bool) (Environment, error) {
	env, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return "", fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	envValue := Environment(env)
	if !envValue.IsValid() {
		return "", fmt.Errorf("environment variable %s has invalid value: %s", key, env)
	}
	return envValue, nil
}
