package grant

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"truevote/contexts/election-ledger/campaign-ledger/domain/entities"
	domainerrors "truevote/contexts/election-ledger/campaign-ledger/domain/errors"
	"truevote/contexts/election-ledger/campaign-ledger/ports"

	"github.com/golang-jwt/jwt/v5"
)

// Config defines how admission grants are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims is the admission grant payload signed by the pre-admission pipeline.
type Claims struct {
	jwt.RegisteredClaims
	CampaignID string `json:"campaign_id"`
	VoterID    string `json:"voter_id"`
	Admitted   bool   `json:"admitted"`
}

// Verifier checks EdDSA admission grants against one campaign and voter.
type Verifier struct {
	cfg Config
}

func NewVerifier(cfg Config) (*Verifier, error) {
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("admission grant issuer and audience are required")
	}
	if len(cfg.Key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("admission grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Verifier{cfg: cfg}, nil
}

// DecodePublicKey accepts raw or padded standard base64.
func DecodePublicKey(value string) (ed25519.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("empty admission grant public key")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err != nil {
		decoded, err = base64.StdEncoding.DecodeString(value)
		if err != nil {
			return nil, fmt.Errorf("decode admission grant public key: %w", err)
		}
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("admission grant public key must be %d bytes", ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(decoded), nil
}

func (v *Verifier) Verify(_ context.Context, grant string, campaignID uint64, voter entities.Identity) error {
	grant = strings.TrimSpace(grant)
	if grant == "" {
		return domainerrors.ErrAdmissionRequired
	}

	var parsed Claims
	_, err := jwt.ParseWithClaims(grant, &parsed, func(*jwt.Token) (any, error) {
		return v.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return denied(mapJWTError(err))
	}

	if parsed.Issuer == "" || parsed.Issuer != v.cfg.Issuer {
		return denied("issuer mismatch")
	}
	if !slices.Contains([]string(parsed.Audience), v.cfg.Audience) {
		return denied("audience mismatch")
	}
	if parsed.ID == "" {
		return denied("jti is required")
	}
	if parsed.ExpiresAt == nil {
		return denied("exp is required")
	}
	now := v.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return denied("grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return denied("grant is not active yet")
	}
	if parsed.CampaignID != strconv.FormatUint(campaignID, 10) {
		return denied("campaign mismatch")
	}
	if strings.TrimSpace(parsed.VoterID) == "" || entities.Identity(parsed.VoterID).Normalize() != voter.Normalize() {
		return denied("voter mismatch")
	}
	if !parsed.Admitted {
		return denied("voter was not admitted")
	}
	return nil
}

func denied(reason string) error {
	return fmt.Errorf("%w: %s", domainerrors.ErrAdmissionDenied, reason)
}

func mapJWTError(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrEd25519Verification):
		return "signature is invalid"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "alg is invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "grant is malformed"
	default:
		return "grant is invalid"
	}
}

var _ ports.AdmissionVerifier = (*Verifier)(nil)
