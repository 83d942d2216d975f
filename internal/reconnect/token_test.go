package reconnect

import (
	"errors"
	"testing"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/model"
	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

func TestToken_RoundTrip(t *testing.T) {
	tok, err := NewToken(model.NewSessionId(), time.Hour)
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	encoded, err := tok.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeToken(encoded)
	if err != nil {
		t.Fatalf("DecodeToken: %v", err)
	}
	if decoded.SessionID != tok.SessionID || decoded.Secret != tok.Secret {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, tok)
	}
}

func TestToken_Expired(t *testing.T) {
	// §8 scenario 4, scaled down: TTL of 1ms, wait 5ms past it, decode fails
	// with Expired.
	tok, err := NewToken(model.NewSessionId(), time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)

	encoded, err := tok.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeToken(encoded); !errors.Is(err, wyerr.Expired) {
		t.Fatalf("got %v, want Expired", err)
	}
}

func TestToken_SecretEntropy(t *testing.T) {
	tok, err := NewToken(model.NewSessionId(), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	// secretBytes = 24 raw bytes = 192 bits, base64 raw-url-encoded.
	if len(tok.Secret) < 24 {
		t.Fatalf("secret too short for >=192 bits of entropy: %q", tok.Secret)
	}
}

func TestDecodeToken_InvalidEncoding(t *testing.T) {
	if _, err := DecodeToken("not-valid-base64!!"); !errors.Is(err, wyerr.Protocol) {
		t.Fatalf("got %v, want Protocol", err)
	}
}
