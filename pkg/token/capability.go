package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScoreTarget names the kind of score a capability token may write.
type ScoreTarget string

const (
	TargetGradedItem ScoreTarget = "graded_item"
	TargetMidterm    ScoreTarget = "midterm"
	TargetFinal      ScoreTarget = "final"
)

// Valid reports whether the target is a known score target.
func (t ScoreTarget) Valid() bool {
	switch t {
	case TargetGradedItem, TargetMidterm, TargetFinal:
		return true
	}
	return false
}

// Capability is the decoded content of a webhook capability token.
type Capability struct {
	Target    ScoreTarget
	TargetID  string // graded item ID, or course ID for exam targets
	IssuerID  string
	ExpiresAt time.Time
}

// CapabilitySigner mints and verifies HMAC-signed capability tokens that
// authorise an external form relay to write one score target.
type CapabilitySigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCapabilitySigner constructs a signer with the provided secret and TTL.
func NewCapabilitySigner(secret string, ttl time.Duration) *CapabilitySigner {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &CapabilitySigner{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Generate returns a signed token granting write access to the target.
func (s *CapabilitySigner) Generate(target ScoreTarget, targetID, issuerID string) (string, time.Time, error) {
	if !target.Valid() {
		return "", time.Time{}, fmt.Errorf("unknown score target %q", target)
	}
	if targetID == "" || issuerID == "" {
		return "", time.Time{}, fmt.Errorf("targetID and issuerID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encodedTarget := base64.RawURLEncoding.EncodeToString([]byte(targetID))
	payload := fmt.Sprintf("%s|%s|%s|%d", target, encodedTarget, issuerID, expiresAt.Unix())
	token := strings.Join([]string{string(target), encodedTarget, issuerID, strconv.FormatInt(expiresAt.Unix(), 10), s.sign(payload)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded capability.
func (s *CapabilitySigner) Parse(raw string) (*Capability, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid token format")
	}
	target := ScoreTarget(parts[0])
	encodedTarget := parts[1]
	issuerID := parts[2]
	ts := parts[3]
	signature := parts[4]

	if !target.Valid() {
		return nil, fmt.Errorf("unknown score target %q", target)
	}
	targetID, err := base64.RawURLEncoding.DecodeString(encodedTarget)
	if err != nil {
		return nil, fmt.Errorf("decode target: %w", err)
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp")
	}
	expiresAt := time.Unix(expUnix, 0)

	payload := fmt.Sprintf("%s|%s|%s|%s", target, encodedTarget, issuerID, ts)
	if !hmac.Equal([]byte(s.sign(payload)), []byte(signature)) {
		return nil, fmt.Errorf("invalid token signature")
	}
	if time.Now().After(expiresAt) {
		return nil, fmt.Errorf("token expired")
	}
	return &Capability{Target: target, TargetID: string(targetID), IssuerID: issuerID, ExpiresAt: expiresAt}, nil
}

func (s *CapabilitySigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
