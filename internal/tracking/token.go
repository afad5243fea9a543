package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Token identifies what a tracking hit belongs to. It is embedded in
// pixel and link URLs as base64url data plus a truncated HMAC signature,
// so recipients cannot forge events for other tenants.
type Token struct {
	TenantID   uuid.UUID
	CampaignID int64
	ContactID  int64
	EmailID    int64
}

// Encode serializes the token into the data and sig URL path segments.
func (t Token) Encode(secret string) (data, sig string) {
	raw := fmt.Sprintf("%s|%d|%d|%d", t.TenantID, t.CampaignID, t.ContactID, t.EmailID)
	data = base64.URLEncoding.EncodeToString([]byte(raw))
	return data, sign(data, secret)
}

// DecodeToken parses and verifies the data/sig pair from a tracking URL.
func DecodeToken(data, sig, secret string) (Token, error) {
	if !hmac.Equal([]byte(sign(data, secret)), []byte(sig)) {
		return Token{}, fmt.Errorf("tracking: bad signature")
	}

	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return Token{}, fmt.Errorf("tracking: bad encoding: %w", err)
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 4 {
		return Token{}, fmt.Errorf("tracking: malformed token")
	}

	tenantID, err := uuid.Parse(parts[0])
	if err != nil {
		return Token{}, fmt.Errorf("tracking: bad tenant id: %w", err)
	}

	t := Token{TenantID: tenantID}
	if t.CampaignID, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
		return Token{}, fmt.Errorf("tracking: bad campaign id: %w", err)
	}
	if t.ContactID, err = strconv.ParseInt(parts[2], 10, 64); err != nil {
		return Token{}, fmt.Errorf("tracking: bad contact id: %w", err)
	}
	if t.EmailID, err = strconv.ParseInt(parts[3], 10, 64); err != nil {
		return Token{}, fmt.Errorf("tracking: bad email id: %w", err)
	}
	return t, nil
}

// sign returns the first 16 hex chars of HMAC-SHA256(data, secret).
// Truncation keeps URLs short; 64 bits is ample for click tracking.
func sign(data, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))[:16]
}
