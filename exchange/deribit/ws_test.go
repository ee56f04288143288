package deribit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hedgeflow/config"
)

// fakeWSServer answers JSON-RPC frames using the provided reply function.
func fakeWSServer(t *testing.T, reply func(req wsRequest) map[string]any) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		// heartbeat notification without id
		_ = conn.WriteJSON(map[string]any{"jsonrpc": "2.0", "method": "heartbeat"})
		for {
			var req wsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := reply(req)
			resp["jsonrpc"] = "2.0"
			resp["id"] = req.ID
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWSTransportRoundTrip(t *testing.T) {
	url := fakeWSServer(t, func(req wsRequest) map[string]any {
		switch req.Method {
		case "public/auth":
			return map[string]any{"result": map[string]any{"access_token": "ws-token"}}
		case "private/buy":
			if req.Params["amount"] != 0.1 {
				return map[string]any{"error": map[string]any{"code": 11050, "message": "bad_request"}}
			}
			return map[string]any{"result": map[string]any{"order": map[string]any{"order_id": "o-1", "price": 0.02}}}
		default:
			return map[string]any{"error": map[string]any{"code": -32601, "message": "Method not found"}}
		}
	})

	c := NewClientWithTransport(NewWSTransport(url, time.Second, "hedgeflow-test"), config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := c.Authenticate(ctx, "id", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken != "ws-token" {
		t.Fatalf("unexpected token: %+v", tok)
	}

	res, err := c.Buy(ctx, tok.AccessToken, BuyRequest{InstrumentName: "BTC-23OCT26-100000-P", Amount: "0.1", Type: "market"})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if res.Order.OrderID != "o-1" {
		t.Fatalf("unexpected order: %+v", res.Order)
	}

	_, err = c.GetIndexPrice(ctx, "btc_usd")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != -32601 {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestWSTransportDialFailure(t *testing.T) {
	tr := NewWSTransport("ws://127.0.0.1:1/ws/api/v2", 200*time.Millisecond, "")
	if _, err := tr.Call(context.Background(), "public/test", nil, ""); err == nil {
		t.Fatal("expected dial error")
	}
}

func TestWSRequestEncoding(t *testing.T) {
	b, err := json.Marshal(wsRequest{JSONRPC: "2.0", ID: 7, Method: "public/get_instrument", Params: map[string]any{"instrument_name": "BTC-23OCT26-100000-P"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"jsonrpc":"2.0","id":7,"method":"public/get_instrument","params":{"instrument_name":"BTC-23OCT26-100000-P"}}`
	if string(b) != want {
		t.Fatalf("unexpected frame: %s", b)
	}
}
