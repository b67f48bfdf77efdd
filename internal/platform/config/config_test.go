package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("DELTAKER_ADDR", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("KAFKA_CONSUMER_GROUP", "")
	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "deltaker", cfg.Kafka.ConsumerGroup)
	assert.NotEmpty(t, cfg.EnabledTiltakstyper)
}

func TestBrokerListNormalization(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " Broker-1:9092 ,broker-1:9092, BROKER-2:9092,, ")
	cfg := FromEnv()
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestEnabledTiltakstyperKeepCase(t *testing.T) {
	// The allow-list values are upstream enum constants; only whitespace and
	// duplicates are cleaned up, case stays as given.
	t.Setenv("ENABLED_TILTAKSTYPER", " OPPFOLGING , AVKLARING ,OPPFOLGING")
	cfg := FromEnv()
	assert.Equal(t, []string{"OPPFOLGING", "AVKLARING"}, cfg.EnabledTiltakstyper)
}
