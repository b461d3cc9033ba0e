// Package oauth builds OAuth 1.0a (RFC 5849) signed requests: percent-encoding,
// nonces, signature base strings, HMAC-SHA1 signatures and the Authorization header.
//
// Everything in this package is pure apart from the clock and the noncer, both of
// which are injectable.
package oauth

import "strings"

const upperhex = "0123456789ABCDEF"

// PercentEncode encodes s per RFC 3986 section 2.1. Only the unreserved characters
// (ALPHA, DIGIT, "-", ".", "_", "~") are left as-is; every other byte, including
// "/", "?", "+" and space, becomes %XX with upper-case hex digits.
func PercentEncode(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var sb strings.Builder
	sb.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			sb.WriteByte('%')
			sb.WriteByte(upperhex[c>>4])
			sb.WriteByte(upperhex[c&15])
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func shouldEscape(c byte) bool {
	if 'A' <= c && c <= 'Z' || 'a' <= c && c <= 'z' || '0' <= c && c <= '9' {
		return false
	}
	switch c {
	case '-', '.', '_', '~':
		return false
	}
	return true
}

// encodeValues percent-encodes every value of params into a new map.
func encodeValues(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = PercentEncode(v)
	}
	return out
}
