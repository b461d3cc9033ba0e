package twitter

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/weiland/HourlyImage/pkg/twitter/oauth"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
	"github.com/weiland/HourlyImage/pkg/utils/metrics"
)

var testCredentials = oauth.Credentials{
	ConsumerKey:      "test-consumer-key",
	ConsumerSecret:   "test-consumer-secret",
	OAuthToken:       "test-token",
	OAuthTokenSecret: "test-token-secret",
}

// received is what a test server saw of a signed request.
type received struct {
	Method string
	Path   string
	Auth   map[string]string
	Params url.Values
}

// parseAuthHeader splits `OAuth k="v",...` into still-encoded values. It runs on
// the server goroutine, so it reports with Errorf only.
func parseAuthHeader(t *testing.T, header string) map[string]string {
	t.Helper()
	if !strings.HasPrefix(header, "OAuth ") {
		t.Errorf("Authorization header %q lacks the OAuth scheme", header)
		return nil
	}
	out := make(map[string]string)
	for _, pair := range strings.Split(strings.TrimPrefix(header, "OAuth "), ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
			t.Errorf("malformed header pair %q", pair)
			continue
		}
		out[k] = v[1 : len(v)-1]
	}
	return out
}

// verifySignature recomputes the signature the way a server would.
func verifySignature(t *testing.T, r *http.Request, auth map[string]string, params url.Values) {
	t.Helper()
	signed := make(map[string]string)
	for k, v := range auth {
		if k != oauth.ParamSignature {
			signed[k] = v
		}
	}
	for k := range params {
		signed[k] = oauth.PercentEncode(params.Get(k))
	}
	base, err := oauth.BaseString(r.Method, "http://"+r.Host+r.URL.Path, signed)
	if err != nil {
		t.Errorf("BaseString() error = %v", err)
		return
	}
	want, err := oauth.Sign(base, testCredentials.SigningKey())
	if err != nil {
		t.Errorf("Sign() error = %v", err)
		return
	}
	if auth[oauth.ParamSignature] != want {
		t.Errorf("signature %q does not verify, want %q", auth[oauth.ParamSignature], want)
	}
}

// newVerifyingServer answers every request with status and body after checking
// the signature, and hands what it saw to the returned channel.
func newVerifyingServer(t *testing.T, status int, body string) (*httptest.Server, <-chan received) {
	t.Helper()
	seen := make(chan received, 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		params := r.URL.Query()
		if len(raw) > 0 {
			form, err := url.ParseQuery(string(raw))
			if err != nil {
				t.Errorf("body is not a form: %v", err)
			}
			for k, v := range form {
				params[k] = v
			}
		}

		auth := parseAuthHeader(t, r.Header.Get("Authorization"))
		verifySignature(t, r, auth, params)

		seen <- received{Method: r.Method, Path: r.URL.Path, Auth: auth, Params: params}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server, seen
}

func newTestClient(t *testing.T, apiBase, uploadBase string, transport Transport) *Client {
	t.Helper()
	client, err := NewClient(&ClientConfig{
		Credentials: testCredentials,
		Endpoints:   Endpoints{APIBase: apiBase, UploadBase: uploadBase},
		Transport:   transport,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *ClientConfig
		wantErr error
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: ErrInvalidConfig,
		},
		{
			name: "missing app credentials",
			config: &ClientConfig{
				Credentials: oauth.Credentials{OAuthToken: "token", OAuthTokenSecret: "secret"},
			},
			wantErr: oauth.ErrMissingAppCredentials,
		},
		{
			name: "missing access credentials",
			config: &ClientConfig{
				Credentials: oauth.Credentials{ConsumerKey: "key", ConsumerSecret: "secret"},
			},
			wantErr: oauth.ErrMissingAccessCredentials,
		},
		{
			name: "relative api base",
			config: &ClientConfig{
				Credentials: testCredentials,
				Endpoints:   Endpoints{APIBase: "api.twitter.com"},
			},
			wantErr: ErrInvalidEndpoint,
		},
		{
			name:    "valid config",
			config:  &ClientConfig{Credentials: testCredentials},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("NewClient() error = %v", err)
				}
				if client.Endpoints() != DefaultEndpoints() {
					t.Errorf("Endpoints() = %+v, want defaults", client.Endpoints())
				}
				return
			}
			if !stderrors.Is(err, tt.wantErr) {
				t.Errorf("NewClient() error = %v, want %v", err, tt.wantErr)
			}
			if !stderrors.Is(err, errors.ErrConfiguration) {
				t.Errorf("NewClient() error = %v, want a configuration error", err)
			}
		})
	}
}

func TestClientVerbs(t *testing.T) {
	api, apiSeen := newVerifyingServer(t, http.StatusOK, `{"id_str":"1"}`)
	upload, uploadSeen := newVerifyingServer(t, http.StatusOK, `{"media_id_string":"2"}`)
	client := newTestClient(t, api.URL, upload.URL, nil)
	ctx := context.Background()
	params := map[string]string{"q": "a/b?c d"}

	tests := []struct {
		name   string
		call   func() (*JSONResponse, error)
		seen   <-chan received
		method string
	}{
		{"get", func() (*JSONResponse, error) { return client.Get(ctx, "search/tweets", params) }, apiSeen, http.MethodGet},
		{"post", func() (*JSONResponse, error) { return client.Post(ctx, "search/tweets", params) }, apiSeen, http.MethodPost},
		{"put", func() (*JSONResponse, error) { return client.Put(ctx, "search/tweets", params) }, apiSeen, http.MethodPut},
		{"delete", func() (*JSONResponse, error) { return client.Delete(ctx, "search/tweets", params) }, apiSeen, http.MethodDelete},
		{"upload", func() (*JSONResponse, error) { return client.Upload(ctx, "search/tweets", params) }, uploadSeen, http.MethodPost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.call(); err != nil {
				t.Fatalf("call error = %v", err)
			}
			got := <-tt.seen
			if got.Method != tt.method {
				t.Errorf("method = %s, want %s", got.Method, tt.method)
			}
			if got.Path != "/1.1/search/tweets.json" {
				t.Errorf("path = %s", got.Path)
			}
			if got.Params.Get("q") != "a/b?c d" {
				t.Errorf("q = %q", got.Params.Get("q"))
			}
			if got.Auth[oauth.ParamConsumerKey] != "test-consumer-key" || got.Auth[oauth.ParamToken] != "test-token" {
				t.Errorf("unexpected auth fields: %v", got.Auth)
			}
			if got.Auth[oauth.ParamSignatureMethod] != "HMAC-SHA1" || got.Auth[oauth.ParamVersion] != "1.0" {
				t.Errorf("unexpected protocol fields: %v", got.Auth)
			}
			for k := range got.Params {
				if strings.HasPrefix(k, "oauth_") {
					t.Errorf("protocol parameter %s leaked outside the header", k)
				}
			}
		})
	}
}

func TestClientResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantType    errors.ErrorType
		wantMessage string
		wantID      string
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"id_str":"123","text":"hi"}`,
			wantID: "123",
		},
		{
			name:   "success with unknown fields",
			status: http.StatusOK,
			body:   `{"id":1,"id_str":"9","entities":{"hashtags":[]}}`,
			wantID: "9",
		},
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"errors":[{"code":32,"message":"Could not authenticate you"}]}`,
			wantType:    errors.TypeAPI,
			wantMessage: "Could not authenticate you",
		},
		{
			name:        "bad request with unparseable body",
			status:      http.StatusBadRequest,
			body:        `<html>oops</html>`,
			wantType:    errors.TypeAPI,
			wantMessage: fallbackErrorMessage,
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{"errors":[{"code":131,"message":"Internal error"}]}`,
			wantType: errors.TypeTransport,
		},
		{
			name:     "forbidden is not classified as api error",
			status:   http.StatusForbidden,
			body:     `{"errors":[{"code":187,"message":"Status is a duplicate."}]}`,
			wantType: errors.TypeTransport,
		},
		{
			name:     "undecodable success body",
			status:   http.StatusOK,
			body:     `not json`,
			wantType: errors.TypeTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newVerifyingServer(t, tt.status, tt.body)
			client := newTestClient(t, server.URL, server.URL, nil)

			resp, err := client.Post(context.Background(), "statuses/update", map[string]string{"status": "x"})
			if tt.wantType == "" {
				if err != nil {
					t.Fatalf("Post() error = %v", err)
				}
				if id, ok := resp.ID.Get(); !ok || id != tt.wantID {
					t.Errorf("ID = %v, want %q", resp.ID, tt.wantID)
				}
				return
			}

			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.TypeOf(err); got != tt.wantType {
				t.Errorf("error type = %q, want %q (%v)", got, tt.wantType, err)
			}
			var apiErr *APIError
			if tt.wantType == errors.TypeAPI {
				if !stderrors.As(err, &apiErr) {
					t.Fatalf("expected *APIError in chain, got %v", err)
				}
				if apiErr.Message() != tt.wantMessage {
					t.Errorf("Message() = %q, want %q", apiErr.Message(), tt.wantMessage)
				}
				if apiErr.StatusCode != tt.status {
					t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
				}
			} else if stderrors.As(err, &apiErr) {
				t.Errorf("unexpected *APIError for status %d", tt.status)
			}
		})
	}
}

func TestClientTransportFailure(t *testing.T) {
	boom := stderrors.New("connection reset")
	client := newTestClient(t, DefaultAPIBase, DefaultUploadBase, TransportFunc(func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
		return 0, nil, boom
	}))

	_, err := client.Get(context.Background(), "statuses/show", nil)
	if !stderrors.Is(err, errors.ErrTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
	if !stderrors.Is(err, boom) {
		t.Errorf("error = %v, want cause preserved", err)
	}
}

func TestClientCancellation(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := newTestClient(t, server.URL, server.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Post(ctx, "statuses/update", map[string]string{"status": "slow"})
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if !stderrors.Is(err, errors.ErrTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestClientMalformedURLNeverSends(t *testing.T) {
	sent := 0
	client := newTestClient(t, DefaultAPIBase, DefaultUploadBase, TransportFunc(func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
		sent++
		return http.StatusOK, []byte(`{}`), nil
	}))

	_, err := client.do(context.Background(), http.MethodPost, "", "statuses/update", nil)
	if !stderrors.Is(err, errors.ErrConfiguration) {
		t.Errorf("error = %v, want configuration error", err)
	}
	if sent != 0 {
		t.Errorf("transport called %d times for a malformed url", sent)
	}
}

func TestClientLimiterAndMetrics(t *testing.T) {
	sent := 0
	collector := metrics.NewMetricsCollector()
	client, err := NewClient(&ClientConfig{
		Credentials: testCredentials,
		Transport: TransportFunc(func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
			sent++
			return http.StatusUnauthorized, []byte(`{"errors":[{"code":89,"message":"Invalid or expired token."}]}`), nil
		}),
		Limiter: rate.NewLimiter(rate.Inf, 1),
		Metrics: collector,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.Get(context.Background(), "account/verify_credentials", nil); !stderrors.Is(err, errors.ErrAPI) {
		t.Fatalf("error = %v, want api error", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want exactly one attempt", sent)
	}

	got := collector.GetMetrics()
	if got[metrics.MetricTwitterAPI+"_counter"].Value.(int64) != 1 {
		t.Errorf("call counter = %v", got[metrics.MetricTwitterAPI+"_counter"])
	}
	if got[metrics.MetricTwitterAPIError+"_counter"].Value.(int64) != 1 {
		t.Errorf("api error counter = %v", got[metrics.MetricTwitterAPIError+"_counter"])
	}
	if _, ok := got[metrics.MetricTwitterAPI+"_latency"]; !ok {
		t.Error("latency not recorded")
	}

	blocked, err := NewClient(&ClientConfig{
		Credentials: testCredentials,
		Transport: TransportFunc(func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
			t.Error("transport must not be reached when the limiter refuses")
			return 0, nil, nil
		}),
		Limiter: rate.NewLimiter(0, 0),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := blocked.Get(context.Background(), "statuses/show", nil); !stderrors.Is(err, errors.ErrTransport) {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestClientConcurrentCallsUseFreshNonces(t *testing.T) {
	server, seen := newVerifyingServer(t, http.StatusOK, `{}`)
	client := newTestClient(t, server.URL, server.URL, nil)

	const calls = 20
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Post(context.Background(), "statuses/update", map[string]string{"status": "same"}); err != nil {
				t.Errorf("Post() error = %v", err)
			}
		}()
	}
	wg.Wait()

	nonces := make(map[string]bool)
	for i := 0; i < calls; i++ {
		got := <-seen
		nonce := got.Auth[oauth.ParamNonce]
		if nonces[nonce] {
			t.Errorf("nonce %q reused", nonce)
		}
		nonces[nonce] = true
	}
}

func TestPrepare(t *testing.T) {
	client, err := NewClient(&ClientConfig{
		Credentials: testCredentials,
		Noncer:      oauth.NoncerFunc(func() string { return "fixed" }),
		Now:         func() time.Time { return time.Unix(1600000000, 0) },
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	req, err := client.Prepare(http.MethodPost, DefaultUploadBase, "media/upload", nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if req.Nonce() != "fixed" || req.Timestamp() != "1600000000" {
		t.Errorf("nonce/timestamp = %q/%q", req.Nonce(), req.Timestamp())
	}
	out, err := req.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if out.URL != "https://upload.twitter.com/1.1/media/upload.json" {
		t.Errorf("URL = %q", out.URL)
	}
}

func TestClientSignsAfterLimiterReleases(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(200*time.Millisecond), 1)
	if !limiter.Allow() {
		t.Fatal("limiter should start with one token")
	}

	var signedAt time.Time
	var sentTimestamp string
	client, err := NewClient(&ClientConfig{
		Credentials: testCredentials,
		Limiter:     limiter,
		Now: func() time.Time {
			signedAt = time.Now()
			return signedAt
		},
		Transport: TransportFunc(func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
			auth := parseAuthHeader(t, req.Header.Get("Authorization"))
			sentTimestamp = auth[oauth.ParamTimestamp]
			return http.StatusOK, []byte(`{}`), nil
		}),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	start := time.Now()
	if _, err := client.Post(context.Background(), "statuses/update", map[string]string{"status": "x"}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}

	if signedAt.IsZero() {
		t.Fatal("clock was never read")
	}
	if waited := signedAt.Sub(start); waited < 100*time.Millisecond {
		t.Errorf("request signed %v after the call started, before the limiter released it", waited)
	}
	if want := strconv.FormatInt(signedAt.Unix(), 10); sentTimestamp != want {
		t.Errorf("sent oauth_timestamp = %q, want %q", sentTimestamp, want)
	}
}
