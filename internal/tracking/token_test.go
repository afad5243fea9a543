package tracking

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	tok := Token{
		TenantID:   uuid.New(),
		CampaignID: 10,
		ContactID:  20,
		EmailID:    30,
	}

	data, sig := tok.Encode(testSecret)
	got, err := DecodeToken(data, sig, testSecret)
	if err != nil {
		t.Fatalf("DecodeToken() error: %v", err)
	}
	if got != tok {
		t.Errorf("DecodeToken() = %+v, want %+v", got, tok)
	}
}

func TestDecodeTokenRejectsBadSignature(t *testing.T) {
	tok := Token{TenantID: uuid.New(), CampaignID: 1}
	data, _ := tok.Encode(testSecret)

	if _, err := DecodeToken(data, "0000000000000000", testSecret); err == nil {
		t.Error("DecodeToken should reject a forged signature")
	}
	// Right signature, wrong secret
	_, sig := tok.Encode("other-secret")
	if _, err := DecodeToken(data, sig, testSecret); err == nil {
		t.Error("DecodeToken should reject a signature made with another secret")
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	if _, err := DecodeToken("not-base64!!", sign("not-base64!!", testSecret), testSecret); err == nil {
		t.Error("DecodeToken should reject undecodable data")
	}
}

func TestInjectTrackingRewritesLinks(t *testing.T) {
	tok := Token{TenantID: uuid.New(), CampaignID: 1, ContactID: 2, EmailID: 3}
	body := `<html><body><a href="https://example.com/pricing">Pricing</a></body></html>`

	out := InjectTracking(body, "https://track.salesbot.io", testSecret, tok)

	if strings.Contains(out, `href="https://example.com/pricing"`) {
		t.Error("original link should have been rewritten")
	}
	if !strings.Contains(out, "https://track.salesbot.io/t/click/") {
		t.Error("rewritten link should point at the click redirect")
	}
	if !strings.Contains(out, "u=https%3A%2F%2Fexample.com%2Fpricing") {
		t.Error("original URL should be carried in the u parameter")
	}
	if !strings.Contains(out, "/t/open/") {
		t.Error("open pixel should be appended")
	}
	if !strings.Contains(out, `style="display:none"></body>`) {
		t.Error("pixel should be injected before </body>")
	}
}

func TestInjectTrackingDoesNotDoubleWrap(t *testing.T) {
	tok := Token{TenantID: uuid.New(), EmailID: 1}
	base := "https://track.salesbot.io"
	body := `<a href="` + ClickURL(base, testSecret, tok, "https://example.com") + `">x</a>`

	out := InjectTracking(body, base, testSecret, tok)
	if strings.Count(out, "/t/click/") != 1 {
		t.Errorf("already-wrapped link was wrapped again:\n%s", out)
	}
}

func TestInjectTrackingWithoutBodyTag(t *testing.T) {
	tok := Token{TenantID: uuid.New()}
	out := InjectTracking("plain text", "https://t.example.com", testSecret, tok)
	if !strings.Contains(out, "/t/open/") {
		t.Error("pixel should be appended even without a body tag")
	}
}

func TestIsSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		want   bool
	}{
		{"https://example.com", true},
		{"http://example.com", true},
		{"/reports/5", true},
		{"//evil.com", false},
		{"javascript:alert(1)", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isSafeRedirect(tt.target); got != tt.want {
			t.Errorf("isSafeRedirect(%q) = %v, want %v", tt.target, got, tt.want)
		}
	}
}
