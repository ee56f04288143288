package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport carries a single JSON-RPC method call and returns its raw
// result. token is empty for public methods.
type Transport interface {
	Call(ctx context.Context, method string, params map[string]any, token string) (json.RawMessage, error)
	Close() error
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds the client used for exchange calls. When localIP is
// set outbound connections are bound to it.
func NewHTTPClient(timeout time.Duration, localIP, userAgent string) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if localIP != "" {
		if ip := net.ParseIP(localIP); ip != nil {
			dialer := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
			transport.DialContext = dialer.DialContext
		}
	}
	var rt http.RoundTripper = transport
	if userAgent != "" {
		rt = userAgentTransport{agent: userAgent, base: transport}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

// HTTPTransport issues GET /api/v2/<method> requests with query parameters,
// authenticating private calls with a bearer token.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params map[string]any, token string) (json.RawMessage, error) {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, fmt.Sprint(v))
	}
	endpoint := fmt.Sprintf("%s/api/v2/%s", t.baseURL, method)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deribit %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response body: %w", method, err)
	}

	return decodeResponse(method, resp.StatusCode, body)
}

func (t *HTTPTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// decodeResponse unwraps a JSON-RPC envelope. Any error member, non-2xx
// status or missing result is reported as an APIError.
func decodeResponse(method string, status int, body []byte) (json.RawMessage, error) {
	var env rpcResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &APIError{Method: method, HTTPStatus: status, Message: "invalid response", Raw: string(body)}
	}
	if env.Error != nil {
		return nil, &APIError{Method: method, HTTPStatus: status, Code: env.Error.Code, Message: env.Error.Message, Raw: string(body)}
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{Method: method, HTTPStatus: status, Raw: string(body)}
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return nil, &APIError{Method: method, HTTPStatus: status, Message: "empty result", Raw: string(body)}
	}
	return env.Result, nil
}
