package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
)

const SignatureHeader = "X-Vendor-Signature"

const maxReceiptBody = 1 << 20

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VendorSignature verifies the vendor's body signature. An empty secret
// disables the check. The body is restored for the next handler.
func VendorSignature(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBody))
			if err != nil {
				writeUnauthorized(w, "unreadable body")
				return
			}
			_ = r.Body.Close()

			got, err := hex.DecodeString(r.Header.Get(SignatureHeader))
			want, _ := hex.DecodeString(Sign(secret, body))
			if err != nil || !hmac.Equal(got, want) {
				writeUnauthorized(w, "invalid signature")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r)
		})
	}
}
