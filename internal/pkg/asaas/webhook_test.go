package asaas

import "testing"

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"event": "PAYMENT_RECEIVED",
		"payment": {
			"id": "pay_123",
			"value": 150.00,
			"billingType": "PIX",
			"status": "RECEIVED",
			"externalReference": "{\"user_id\":\"8a6e0804-2bd0-4672-b79d-d97027f9071a\",\"referral_code\":\"ABC123\"}"
		}
	}`)

	ev, err := ParseWebhook(body)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !ev.IsSettled() {
		t.Fatal("PAYMENT_RECEIVED should count as settled")
	}

	ref, err := ParseReference(ev.Payment.ExternalReference)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if ref.ReferralCode != "ABC123" {
		t.Fatalf("referral code = %q", ref.ReferralCode)
	}
}

func TestParseWebhookMissingPaymentID(t *testing.T) {
	if _, err := ParseWebhook([]byte(`{"event":"PAYMENT_CONFIRMED","payment":{}}`)); err == nil {
		t.Fatal("expected error for missing payment id")
	}
}

func TestParseReferenceRequiresUserID(t *testing.T) {
	if _, err := ParseReference(`{"referral_code":"ABC"}`); err == nil {
		t.Fatal("expected error for missing user_id")
	}
}

func TestVerifyAccessToken(t *testing.T) {
	if !VerifyAccessToken("secret", "secret") {
		t.Fatal("matching token rejected")
	}
	if VerifyAccessToken("wrong", "secret") {
		t.Fatal("wrong token accepted")
	}
	if VerifyAccessToken("", "") {
		t.Fatal("empty configuration must never verify")
	}
}
