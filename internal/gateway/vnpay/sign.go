package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// signParams builds the canonical string VNPay signs: parameters sorted by
// name, empty values and the signature field itself skipped, each pair
// URL-encoded and joined with '&'.
func signParams(params map[string]string, secret string) string {
	return hmacSHA512(secret, canonicalQuery(params))
}

func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" || k == "vnp_SecureHash" || k == "vnp_SecureHashType" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

func hmacSHA512(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(params map[string]string, secret, got string) bool {
	want := signParams(params, secret)
	return hmac.Equal([]byte(strings.ToLower(got)), []byte(want))
}
