package oauth

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dghubble/oauth1"

	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

// SigningKey is the HMAC key material of a request.
type SigningKey struct {
	ConsumerSecret string
	TokenSecret    string
}

// String renders the key as consumerSecret&tokenSecret. The separator is present
// even when the token secret is empty.
func (k SigningKey) String() string {
	return k.ConsumerSecret + "&" + k.TokenSecret
}

// NormalizedURL returns the base string URI of rawURL: lower-case scheme and host,
// no default port, no query or fragment.
func NormalizedURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Configuration("parse request url", err)
	}
	if u.Host == "" {
		return "", errors.Configuration(fmt.Sprintf("request url %q has no host", rawURL), nil)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host += ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return scheme + "://" + host + path, nil
}

func isDefaultPort(scheme, port string) bool {
	return scheme == "http" && port == "80" || scheme == "https" && port == "443"
}

// SignableParameters returns the normalized parameter string: pairs sorted by
// encoded key, joined as key=value with "&". Values must already be
// percent-encoded; they are not encoded again.
func SignableParameters(params map[string]string) string {
	keys := make([]string, 0, len(params))
	encoded := make(map[string]string, len(params))
	for k, v := range params {
		ek := PercentEncode(k)
		keys = append(keys, ek)
		encoded[ek] = v
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+encoded[k])
	}
	return strings.Join(pairs, "&")
}

// BaseString assembles the signature base string from the upper-case method, the
// normalized URL and the signable parameters, each percent-encoded.
func BaseString(method, rawURL string, params map[string]string) (string, error) {
	normalized, err := NormalizedURL(rawURL)
	if err != nil {
		return "", err
	}
	parts := []string{
		PercentEncode(strings.ToUpper(method)),
		PercentEncode(normalized),
		PercentEncode(SignableParameters(params)),
	}
	return strings.Join(parts, "&"), nil
}

// Sign computes the HMAC-SHA1 of base with key and returns it base64 encoded and
// then percent-encoded, ready to be placed in a header.
func Sign(base string, key SigningKey) (string, error) {
	signer := &oauth1.HMACSigner{ConsumerSecret: key.ConsumerSecret}
	signature, err := signer.Sign(key.TokenSecret, base)
	if err != nil {
		return "", fmt.Errorf("hmac sign: %w", err)
	}
	return PercentEncode(signature), nil
}
