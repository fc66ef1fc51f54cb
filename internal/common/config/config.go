// Package config loads per-service configuration from the environment,
// mirroring the env-prefixed settings classes of the system this repo
// reimplements (e.g. WALLET_DB_HOST, PAYMENTS_PORT), plus a few shared
// unprefixed groups (e.g. WALLET_TIMEOUT_SECONDS, JWT_JWKS_URL).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, sslmode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	GroupID string
}

// JWTConfig configures RS256 validation against a remote JWKS set. There is
// no shared secret: signing keys live only with the Identity service.
type JWTConfig struct {
	Issuer    string
	Audience  string
	JWKSURL   string
	CacheTTL  time.Duration
	HTTPTimeout time.Duration
}

type ServiceConfig struct {
	Name string
	Port string
}

// WalletClientConfig configures the Payment Intent Orchestrator's calls
// into the Wallet Ledger Core (spec §4.4 "Wallet call retries").
type WalletClientConfig struct {
	BaseURL             string
	TimeoutSeconds      int
	RetryAttempts       int
	RetryBackoffSeconds float64
}

// RiskClientConfig configures the Payment Intent Orchestrator's calls into
// the Risk Evaluator (spec §4.3).
type RiskClientConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// IdentityConfig configures the Identity service's own token-minting half
// (key material + token lifetimes); JWTConfig above is the verifier-side
// contract every other service trusts.
type IdentityConfig struct {
	KeyID            string
	PrivateKeyPath   string
	PublicKeyPath    string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration
}

type Config struct {
	Service  ServiceConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Wallet   WalletClientConfig
	Risk     RiskClientConfig
	Identity IdentityConfig

	// RiskCheckEnabled gates the Wallet Ledger Core's optional risk coupling
	// on raw debits (spec §4.2 "Risk coupling on raw debit"). Off by default;
	// the orchestrator's own risk call on intent confirm is unaffected.
	RiskCheckEnabled bool
}

// Load reads configuration for the named service (e.g. "wallet",
// "payments", "identity", "riskstub") from <SERVICE>_* environment
// variables, plus the unprefixed JWT_*, WALLET_*, RISK_* and IDENTITY_*
// client groups shared by every service, falling back to sane local
// defaults.
func Load(service string) (*Config, error) {
	prefix := strings.ToUpper(service) + "_"

	port := getEnv(prefix+"PORT", defaultPort(service))

	cfg := &Config{
		Service: ServiceConfig{
			Name: service,
			Port: port,
		},
		Database: DatabaseConfig{
			Host:            getEnv(prefix+"DB_HOST", "localhost"),
			Port:            getEnv(prefix+"DB_PORT", "5432"),
			User:            getEnv(prefix+"DB_USER", service+"_user"),
			Password:        getEnv(prefix+"DB_PASSWORD", service+"_password"),
			DBName:          getEnv(prefix+"DB_NAME", service+"_db"),
			SSLMode:         getEnv(prefix+"DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt(prefix+"DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt(prefix+"DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration(prefix+"DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv(prefix+"REDIS_ADDR", "localhost:6379"),
			Password: getEnv(prefix+"REDIS_PASSWORD", ""),
			DB:       getEnvAsInt(prefix+"REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: strings.Split(getEnv(prefix+"KAFKA_BROKERS", "localhost:9092"), ","),
			GroupID: getEnv(prefix+"KAFKA_GROUP_ID", service+"-service"),
		},
		JWT: JWTConfig{
			Issuer:      getEnv("JWT_ISSUER", "http://identity-service:8080"),
			Audience:    getEnv("JWT_AUDIENCE", "fintech-partners"),
			JWKSURL:     getEnv("JWT_JWKS_URL", "http://identity-service:8080/api/v1/auth/jwks"),
			CacheTTL:    getEnvAsDuration("JWT_JWKS_CACHE_TTL", 300*time.Second),
			HTTPTimeout: getEnvAsDuration("JWT_JWKS_TIMEOUT", 5*time.Second),
		},
		Wallet: WalletClientConfig{
			BaseURL:             getEnv("WALLET_BASE_URL", "http://wallet-service:8081"),
			TimeoutSeconds:      getEnvAsInt("WALLET_TIMEOUT_SECONDS", 10),
			RetryAttempts:       getEnvAsInt("WALLET_RETRY_ATTEMPTS", 3),
			RetryBackoffSeconds: getEnvAsFloat("WALLET_RETRY_BACKOFF_SECONDS", 0.5),
		},
		Risk: RiskClientConfig{
			BaseURL:        getEnv("RISK_BASE_URL", "http://risk-service:8083"),
			TimeoutSeconds: getEnvAsInt("RISK_TIMEOUT_SECONDS", 10),
		},
		Identity: IdentityConfig{
			KeyID:           getEnv("IDENTITY_JWT_KEY_ID", "identity-2026"),
			PrivateKeyPath:  getEnv("IDENTITY_PRIVATE_KEY_PATH", "/tmp/mercuria-identity/private_key.pem"),
			PublicKeyPath:   getEnv("IDENTITY_PUBLIC_KEY_PATH", "/tmp/mercuria-identity/public_key.pem"),
			AccessTokenTTL:  getEnvAsDuration("IDENTITY_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getEnvAsDuration("IDENTITY_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		},
		RiskCheckEnabled: getEnvAsBool(prefix+"RISK_CHECK_ENABLED", false),
	}

	return cfg, nil
}

func defaultPort(service string) string {
	switch service {
	case "wallet":
		return "8081"
	case "payments":
		return "8082"
	case "identity":
		return "8080"
	case "riskstub":
		return "8083"
	default:
		return "8080"
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr != "" {
		if duration, err := time.ParseDuration(valueStr); err == nil {
			return duration
		}
	}
	return defaultValue
}
