package binance

import (
	"net/url"
	"testing"
)

func TestSignIsDeterministicForSameParams(t *testing.T) {
	signer := NewSigner("key", "secret")
	params := url.Values{"symbol": {"BTCUSDT"}, "timestamp": {"1000"}}

	a := signer.Sign(params)
	b := signer.Sign(params)
	if a != b {
		t.Fatalf("expected deterministic signature, got %q and %q", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars (sha256), got %d: %q", len(a), a)
	}
}

func TestSignDiffersAcrossSecrets(t *testing.T) {
	params := url.Values{"symbol": {"BTCUSDT"}}
	a := NewSigner("key", "secret-a").Sign(params)
	b := NewSigner("key", "secret-b").Sign(params)
	if a == b {
		t.Fatalf("expected different signatures for different secrets")
	}
}

func TestSignedQueryIncludesTimestampRecvWindowAndSignature(t *testing.T) {
	signer := NewSigner("key", "secret")
	query := signer.SignedQuery(url.Values{"symbol": {"BTCUSDT"}})

	values, err := url.ParseQuery(query)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	if values.Get("timestamp") == "" {
		t.Fatalf("expected timestamp in signed query")
	}
	if values.Get("recvWindow") != "5000" {
		t.Fatalf("expected default recvWindow 5000, got %q", values.Get("recvWindow"))
	}
	if values.Get("signature") == "" {
		t.Fatalf("expected signature in signed query")
	}
}
