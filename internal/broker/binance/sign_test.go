package binance

import (
	"net/url"
	"strings"
	"testing"
)

func TestSignedQuery(t *testing.T) {
	params := url.Values{}
	params.Set("symbol", "BTCUSDT")
	params.Set("side", "BUY")

	query := signedQuery("secret", params, 1700000000000)

	if !strings.Contains(query, "timestamp=1700000000000") {
		t.Errorf("query missing timestamp: %s", query)
	}

	idx := strings.LastIndex(query, "&signature=")
	if idx < 0 {
		t.Fatalf("query missing signature: %s", query)
	}
	base, sig := query[:idx], query[idx+len("&signature="):]

	if len(sig) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(sig))
	}
	if want := sign("secret", base); sig != want {
		t.Errorf("signature = %s, want HMAC of %q = %s", sig, base, want)
	}
}

func TestSignedQueryDeterministic(t *testing.T) {
	build := func() string {
		params := url.Values{}
		params.Set("symbol", "ETHUSDT")
		params.Set("quantity", "0.5")
		return signedQuery("secret", params, 1700000000000)
	}
	if a, b := build(), build(); a != b {
		t.Errorf("same inputs signed differently:\n%s\n%s", a, b)
	}
}

func TestSignKeyAndPayloadSensitivity(t *testing.T) {
	base := sign("secret", "a=1")
	if sign("other", "a=1") == base {
		t.Error("different keys produced the same signature")
	}
	if sign("secret", "a=2") == base {
		t.Error("different payloads produced the same signature")
	}
}
