package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pkgstrings "deltaker/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string

	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// PendingConsentTTL bounds how long an unanswered consent stays open.
	PendingConsentTTL time.Duration

	// EnabledTiltakstyper is the deployment allow-list the reconciler gates
	// upstream payloads on. Raw strings here; main validates them.
	EnabledTiltakstyper []string
}

// RedisConfig carries connection settings for the name-lookup cache.
// An empty URL disables Redis entirely.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig carries settings for the upstream change stream and the
// outbound notification topic.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	UpstreamTopic string
	OutboundTopic string
}

// NameCacheTTL enforces retention for cached actor and unit display names.
var NameCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("DELTAKER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	brokers := splitHostList(os.Getenv("KAFKA_BROKERS"))
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	return Server{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: envOr("KAFKA_CONSUMER_GROUP", "deltaker"),
			UpstreamTopic: envOr("KAFKA_UPSTREAM_TOPIC", "amt-deltaker-v1"),
			OutboundTopic: envOr("KAFKA_OUTBOUND_TOPIC", "deltaker-endret-v1"),
		},
		PendingConsentTTL:   envDuration("PENDING_CONSENT_TTL", 30*24*time.Hour),
		EnabledTiltakstyper: splitList(envOr("ENABLED_TILTAKSTYPER", "OPPFOLGING,AVKLARING,ARBEIDSFORBEREDENDE_TRENING")),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrim(strings.Split(v, ","))
}

// splitHostList lowercases on top of the trim and dedupe: host names are
// case-insensitive, so "Broker-1:9092" and "broker-1:9092" are one broker.
func splitHostList(v string) []string {
	if v == "" {
		return nil
	}
	return pkgstrings.DedupeAndTrimLower(strings.Split(v, ","))
}
