package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, uint64(100), cfg.RewardRate)
	assert.Equal(t, 24*time.Hour, cfg.EpochDuration)
	assert.Equal(t, uint64(5000), cfg.MinVolume)
	assert.Equal(t, 5*time.Second, cfg.TransferTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("REWARD_RATE", "7")
	t.Setenv("EPOCH_DURATION_SECONDS", "60")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("MIN_VOLUME", "not-a-number")
	t.Setenv("DEMO_BALANCES", "alice:1000, bob:25,broken,carol:-3")

	cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, uint64(7), cfg.RewardRate)
	assert.Equal(t, time.Minute, cfg.EpochDuration)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, uint64(5000), cfg.MinVolume)
	assert.Equal(t, map[string]uint64{"alice": 1000, "bob": 25}, cfg.DemoBalances)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("AUTHORITY=treasury\nHTTP_PORT=9090\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AUTHORITY")
		os.Unsetenv("HTTP_PORT")
	})

	cfg := LoadConfig(path)

	assert.Equal(t, "treasury", cfg.Authority)
	assert.Equal(t, "9090", cfg.HTTPPort)
}

func TestLoadConfigEpochDurationBounds(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"9223372036", 9223372036 * time.Second},
		{"9223372037", 24 * time.Hour},
		{"18446744074", 24 * time.Hour},
		{"-5", 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Setenv("EPOCH_DURATION_SECONDS", tt.value)
		cfg := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		assert.Equal(t, tt.want, cfg.EpochDuration, tt.value)
	}
}
