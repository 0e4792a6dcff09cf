package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DEVELOPMENT", "RECEIPT_SECRET", "RECEIPT_ISSUER", "RECEIPT_TTL_SECONDS", "MAX_BODY_BYTES"} {
		t.Setenv(k, "")
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Development)
	assert.Empty(t, cfg.ReceiptSecret)
	assert.Equal(t, time.Hour, cfg.ReceiptTTL)
	assert.Equal(t, int64(4<<20), cfg.MaxBodyBytes)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("PORT", "9091")
	t.Setenv("DEVELOPMENT", "true")
	t.Setenv("RECEIPT_SECRET", "s3cret")
	t.Setenv("RECEIPT_TTL_SECONDS", "60")
	t.Setenv("MAX_BODY_BYTES", "1024")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9091, cfg.Port)
	assert.True(t, cfg.Development)
	assert.Equal(t, "s3cret", cfg.ReceiptSecret)
	assert.Equal(t, time.Minute, cfg.ReceiptTTL)
	assert.Equal(t, int64(1024), cfg.MaxBodyBytes)
}
