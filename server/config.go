package server

import (
	"time"

	"tlsn-verifier/shared"
)

type Config struct {
	Port        int  `json:"port"`
	Development bool `json:"development"`

	// Receipts are issued only when a secret is configured.
	ReceiptSecret string        `json:"-"`
	ReceiptIssuer string        `json:"receipt_issuer"`
	ReceiptTTL    time.Duration `json:"receipt_ttl"`

	MaxBodyBytes int64 `json:"max_body_bytes"`
}

func LoadConfig() (*Config, error) {
	if err := shared.LoadDotEnv(); err != nil {
		return nil, err
	}
	return &Config{
		Port:          shared.GetEnvIntOrDefault("PORT", 8080),
		Development:   shared.GetEnvBoolOrDefault("DEVELOPMENT", false),
		ReceiptSecret: shared.GetEnvOrDefault("RECEIPT_SECRET", ""),
		ReceiptIssuer: shared.GetEnvOrDefault("RECEIPT_ISSUER", "tlsn-verifier"),
		ReceiptTTL:    time.Duration(shared.GetEnvIntOrDefault("RECEIPT_TTL_SECONDS", 3600)) * time.Second,
		MaxBodyBytes:  shared.GetEnvInt64OrDefault("MAX_BODY_BYTES", 4<<20),
	}, nil
}
