package twitter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weiland/HourlyImage/pkg/twitter/oauth"
)

// DefaultTimeout bounds a single round trip of the default transport.
const DefaultTimeout = 30 * time.Second

// Transport performs exactly one round trip for a signed request. It is the only
// I/O dependency of the client.
type Transport interface {
	Send(ctx context.Context, req *oauth.OutboundRequest) (statusCode int, body []byte, err error)
}

// HTTPTransport sends requests with an *http.Client. Connection pooling is left to
// the client; nothing from a previous exchange flows into the next request.
type HTTPTransport struct {
	Client *http.Client
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport returns a transport whose client times out after timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPTransport{Client: &http.Client{Timeout: timeout}}
}

func (t *HTTPTransport) Send(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header = req.Header.Clone()

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error)

func (f TransportFunc) Send(ctx context.Context, req *oauth.OutboundRequest) (int, []byte, error) {
	return f(ctx, req)
}
