package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tlsn-verifier/notary"
)

// ReceiptClaims attest that this service verified a presentation. The
// transcripts are committed to by digest only.
type ReceiptClaims struct {
	SessionTime   uint64 `json:"session_time"`
	SentSHA256    string `json:"sent_sha256"`
	RecvSHA256    string `json:"recv_sha256"`
	ServerName    string `json:"server_name,omitempty"`
	AttestationID string `json:"attestation_id"`
	jwt.RegisteredClaims
}

// ReceiptService signs and checks HS256 verification receipts.
type ReceiptService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

func NewReceiptService(signingKey, issuer string, ttl time.Duration) *ReceiptService {
	return &ReceiptService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Issue signs a receipt for a verified report.
func (s *ReceiptService) Issue(report *notary.Report) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ReceiptClaims{
		SessionTime:   report.Time,
		SentSHA256:    digest(report.Sent),
		RecvSHA256:    digest(report.Recv),
		ServerName:    report.ServerName,
		AttestationID: report.AttestationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   report.AttestationID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign receipt: %w", err)
	}
	return signed, nil
}

// Parse validates a receipt and returns its claims.
func (s *ReceiptService) Parse(tokenString string) (*ReceiptClaims, error) {
	claims := &ReceiptClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid receipt: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid receipt")
	}
	return claims, nil
}
