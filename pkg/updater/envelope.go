package updater

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer names the only principal whose envelopes the relay accepts.
const Issuer = "rain-supervisor"

type batchClaims struct {
	Batch json.RawMessage `json:"batch"`
	jwt.RegisteredClaims
}

// Signer produces signed batch envelopes on the supervisor side.
type Signer struct {
	key   []byte
	clock func() time.Time
	ttl   time.Duration
}

// NewSigner creates a Signer with the shared HMAC key. Envelopes expire
// after ttl.
func NewSigner(key []byte, ttl time.Duration) *Signer {
	return &Signer{key: key, clock: time.Now, ttl: ttl}
}

// Sign wraps batch in a signed envelope.
func (s *Signer) Sign(batch Batch) (string, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return "", fmt.Errorf("updater: marshal batch: %w", err)
	}
	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, batchClaims{
		Batch: raw,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        batch.ID,
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("updater: sign envelope: %w", err)
	}
	return signed, nil
}

// Verifier checks envelope signatures on the relay side.
type Verifier struct {
	key []byte
}

// NewVerifier creates a Verifier with the shared HMAC key.
func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key}
}

// Verify checks the envelope's signature, issuer, and expiry, and returns
// the raw batch payload.
func (v *Verifier) Verify(envelope string) (json.RawMessage, error) {
	var claims batchClaims
	_, err := jwt.ParseWithClaims(envelope, &claims,
		func(*jwt.Token) (any, error) { return v.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("updater: verify envelope: %w", err)
	}
	if len(claims.Batch) == 0 {
		return nil, fmt.Errorf("updater: envelope carries no batch")
	}
	return claims.Batch, nil
}
