package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "90s")
	t.Setenv("X_BOOL", "off")
	t.Setenv("X_LIST", " a, ,b ")

	assert.Equal(t, 7, envInt("X_INT", 7))
	assert.Equal(t, 90*time.Second, envDur("X_DUR", time.Minute))
	assert.False(t, envBool("X_BOOL", true))
	assert.Equal(t, []string{"a", "b"}, envList("X_LIST", nil))
	assert.Equal(t, "d", getenv("X_MISSING", "d"))
}

func TestLoadBookingConfigDefaults(t *testing.T) {
	cfg := LoadBookingConfig()
	assert.Equal(t, DefaultBookingConfig(), cfg)
}

func TestLoadBookingConfigOverrides(t *testing.T) {
	t.Setenv("BOOKING_CLEANING_BUFFER", "45m")
	t.Setenv("SWEEP_CRON", "")
	t.Setenv("SHIFT_FLOAT_CENTS", "300000")
	cfg := LoadBookingConfig()
	assert.Equal(t, 45*time.Minute, cfg.CleaningBuffer)
	assert.Empty(t, cfg.SweepCron)
	assert.Equal(t, int64(300000), cfg.ShiftFloat)
}

func TestLoadPaymentConfigPicksKey(t *testing.T) {
	t.Setenv("PAYMONGO_TEST_SECRET_KEY", "sk_test")
	t.Setenv("PAYMONGO_SECRET_KEY_LIVE", "sk_live")

	assert.Equal(t, "sk_test", LoadPaymentConfig().SecretKey)

	t.Setenv("PAYMONGO_IS_LIVE", "true")
	cfg := LoadPaymentConfig()
	assert.Equal(t, "sk_live", cfg.SecretKey)
	assert.Equal(t, []string{"qrph"}, cfg.MethodTypes)
	assert.Equal(t, "PHP", cfg.Currency)
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestRedisOptionsHostPort(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:1")
	assert.Equal(t, "cache:1", RedisOptions().Addr)
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	assert.Equal(t, "redis:6380", RedisOptions().Addr)
}

func TestLoadTracingConfig(t *testing.T) {
	cfg := LoadTracingConfig()
	assert.Equal(t, "hotel-reservation", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	t.Setenv("OTEL_SERVICE_NAME", "front-desk")
	t.Setenv("TRACE_SAMPLE_RATIO", "4")
	cfg = LoadTracingConfig()
	assert.Equal(t, "front-desk", cfg.ServiceName)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")
	assert.Equal(t, 0.25, LoadTracingConfig().SampleRatio)
	t.Setenv("TRACE_SAMPLE_RATIO", "junk")
	assert.Equal(t, 1.0, LoadTracingConfig().SampleRatio)
}
