package oauth

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

const (
	// SignatureMethod is the only signature method this package produces.
	SignatureMethod = "HMAC-SHA1"
	// Version is the oauth_version sent with every request.
	Version = "1.0"

	// paramPrefix selects the parameters that travel in the Authorization header.
	paramPrefix = "oauth"
)

// Reserved protocol parameter names.
const (
	ParamConsumerKey     = "oauth_consumer_key"
	ParamNonce           = "oauth_nonce"
	ParamSignature       = "oauth_signature"
	ParamSignatureMethod = "oauth_signature_method"
	ParamTimestamp       = "oauth_timestamp"
	ParamToken           = "oauth_token"
	ParamVersion         = "oauth_version"
)

// OutboundRequest is a fully signed request ready for a transport. It is built
// once per call and never reused.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Builder creates signed requests for one set of credentials. A Builder holds no
// per-request state and is safe for concurrent use as long as its Noncer is.
type Builder struct {
	Credentials Credentials
	// Noncer supplies oauth_nonce. Required.
	Noncer Noncer
	// Now supplies oauth_timestamp. Defaults to time.Now.
	Now func() time.Time
}

// NewBuilder returns a Builder using a HashNoncer and the wall clock.
func NewBuilder(creds Credentials) (*Builder, error) {
	noncer, err := NewHashNoncer(DefaultNonceSalt, DefaultNonceWindow)
	if err != nil {
		return nil, err
	}
	return &Builder{
		Credentials: creds,
		Noncer:      noncer,
		Now:         time.Now,
	}, nil
}

// Request is a single signed call: caller parameters plus the protocol parameters
// generated for it.
type Request struct {
	method     string
	url        string
	signingKey SigningKey
	// caller holds the percent-encoded caller parameters; they form the body.
	caller map[string]string
	// params is caller merged with the protocol parameters; it is what gets signed.
	params map[string]string
}

// NewRequest prepares a request. Caller values are percent-encoded first, then the
// protocol parameters are generated with a fresh nonce and timestamp, then both are
// merged with caller values winning on a key collision. Query parameters present in
// rawURL are treated as caller parameters. A URL without a host fails here, before
// anything could reach the network.
func (b *Builder) NewRequest(method, rawURL string, params map[string]string) (*Request, error) {
	if b.Noncer == nil {
		return nil, errors.Configuration("request builder has no noncer", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Configuration("parse request url", err)
	}
	if _, err := NormalizedURL(rawURL); err != nil {
		return nil, err
	}

	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodGet
	}

	all := make(map[string]string, len(params))
	for k, values := range u.Query() {
		if len(values) > 0 {
			all[k] = values[0]
		}
	}
	for k, v := range params {
		all[k] = v
	}
	// The signature is computed, never supplied.
	delete(all, ParamSignature)
	caller := encodeValues(all)

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	defaults := map[string]string{
		ParamConsumerKey:     PercentEncode(b.Credentials.ConsumerKey),
		ParamNonce:           PercentEncode(b.Noncer.Nonce()),
		ParamTimestamp:       strconv.FormatInt(now().Unix(), 10),
		ParamToken:           PercentEncode(b.Credentials.OAuthToken),
		ParamSignatureMethod: SignatureMethod,
		ParamVersion:         Version,
	}

	merged := make(map[string]string, len(caller)+len(defaults))
	for k, v := range caller {
		merged[k] = v
	}
	for k, v := range defaults {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}

	return &Request{
		method:     method,
		url:        rawURL,
		signingKey: b.Credentials.SigningKey(),
		caller:     caller,
		params:     merged,
	}, nil
}

// Method returns the upper-case HTTP method.
func (r *Request) Method() string { return r.method }

// Nonce returns the oauth_nonce of the request.
func (r *Request) Nonce() string { return r.params[ParamNonce] }

// Timestamp returns the oauth_timestamp of the request.
func (r *Request) Timestamp() string { return r.params[ParamTimestamp] }

// Parameters returns a copy of the merged, percent-encoded parameter set.
func (r *Request) Parameters() map[string]string {
	out := make(map[string]string, len(r.params))
	for k, v := range r.params {
		out[k] = v
	}
	return out
}

// BaseString returns the signature base string over the merged parameters.
func (r *Request) BaseString() (string, error) {
	return BaseString(r.method, r.url, r.params)
}

// AuthHeader signs the merged parameter set and returns the Authorization header
// value: "OAuth " followed by the oauth-prefixed parameters, signature included, as
// key="value" pairs in ascending key order.
func (r *Request) AuthHeader() (string, error) {
	base, err := r.BaseString()
	if err != nil {
		return "", err
	}
	signature, err := Sign(base, r.signingKey)
	if err != nil {
		return "", errors.Configuration("sign request", err)
	}

	fields := make(map[string]string, len(r.params)+1)
	for k, v := range r.params {
		if strings.HasPrefix(k, paramPrefix) {
			fields[k] = v
		}
	}
	fields[ParamSignature] = signature
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=\"%s\"", PercentEncode(k), fields[k]))
	}
	return "OAuth " + strings.Join(pairs, ","), nil
}

// Build returns the transport request. The body (or, for GET and DELETE, the query
// string) carries only the caller parameters; protocol parameters travel in the
// Authorization header.
func (r *Request) Build() (*OutboundRequest, error) {
	auth, err := r.AuthHeader()
	if err != nil {
		return nil, err
	}
	target, err := NormalizedURL(r.url)
	if err != nil {
		return nil, err
	}

	header := make(http.Header)
	header.Set("Authorization", auth)
	header.Set("Accept", "application/json")

	form := encodeForm(r.caller)
	var body []byte
	switch r.method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if form != "" {
			target += "?" + form
		}
	default:
		body = []byte(form)
		header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return &OutboundRequest{
		Method: r.method,
		URL:    target,
		Header: header,
		Body:   body,
	}, nil
}

// encodeForm renders already-encoded values as a form string in key order.
func encodeForm(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, PercentEncode(k)+"="+params[k])
	}
	return strings.Join(pairs, "&")
}
