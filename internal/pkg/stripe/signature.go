package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a signed webhook may be.
const DefaultTolerance = 5 * time.Minute

// VerifySignature validates a Stripe-Signature header against the payload.
// Header format: t=<unix>,v1=<hex hmac>[,v1=...]; the signed string is
// "<t>.<payload>" with HMAC-SHA256 under the endpoint secret.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	if secret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	var ts int64
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			parsed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid signature timestamp")
			}
			ts = parsed
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == 0 || len(candidates) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	age := now.Sub(time.Unix(ts, 0))
	if age > DefaultTolerance || age < -DefaultTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if subtle.ConstantTimeCompare([]byte(expected), []byte(c)) == 1 {
			return nil
		}
	}
	return fmt.Errorf("signature mismatch")
}

// SignPayload produces a Stripe-Signature header value for a payload.
// Used by tests and the local webhook replayer.
func SignPayload(payload []byte, secret string, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
