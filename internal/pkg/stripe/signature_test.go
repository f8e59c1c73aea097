package stripe

import (
	"testing"
	"time"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()

	header := SignPayload(payload, "whsec_test", now)
	if err := VerifySignature(payload, header, "whsec_test", now); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	header := SignPayload(payload, "whsec_a", now)
	if err := VerifySignature(payload, header, "whsec_b", now); err == nil {
		t.Fatal("signature under a different secret must fail")
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":100}`), "whsec_test", now)
	if err := VerifySignature([]byte(`{"amount":999}`), header, "whsec_test", now); err == nil {
		t.Fatal("tampered payload must fail")
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-time.Hour)

	header := SignPayload(payload, "whsec_test", signedAt)
	if err := VerifySignature(payload, header, "whsec_test", time.Now()); err == nil {
		t.Fatal("stale signature must fail")
	}
}

func TestVerifySignatureMalformedHeader(t *testing.T) {
	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		if err := VerifySignature([]byte(`{}`), header, "whsec_test", time.Now()); err == nil {
			t.Fatalf("header %q should be rejected", header)
		}
	}
}
