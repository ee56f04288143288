package deribit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hedgeflow/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport := NewHTTPTransport(srv.URL, NewHTTPClient(time.Second, "", "hedgeflow-test"))
	return NewClientWithTransport(transport, config.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})
}

func TestAuthenticate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/public/auth" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("grant_type") != "client_credentials" || q.Get("client_id") != "id" || q.Get("client_secret") != "secret" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if ua := r.Header.Get("User-Agent"); ua != "hedgeflow-test" {
			t.Errorf("unexpected user agent: %s", ua)
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"access_token":"tok","expires_in":900,"token_type":"bearer"}}`)
	})

	tok, err := c.Authenticate(context.Background(), "id", "secret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if tok.AccessToken != "tok" || tok.ExpiresIn != 900 {
		t.Fatalf("unexpected token: %+v", tok)
	}
}

func TestAuthenticateFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"jsonrpc":"2.0","error":{"code":13004,"message":"invalid_credentials"}}`)
	})

	_, err := c.Authenticate(context.Background(), "id", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 13004 || apiErr.Message != "invalid_credentials" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestGetInstruments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("currency") != "BTC" || q.Get("kind") != "option" || q.Get("expired") != "false" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","result":[
			{"instrument_name":"BTC-23OCT26-100000-P","kind":"option","option_type":"put","strike":100000,"is_active":true},
			{"instrument_name":"BTC-23OCT26-100000-C","kind":"option","option_type":"call","strike":100000,"is_active":true}
		]}`)
	})

	list, err := c.GetInstruments(context.Background(), "BTC", "option", false)
	if err != nil {
		t.Fatalf("GetInstruments: %v", err)
	}
	if len(list) != 2 || list[0].InstrumentName != "BTC-23OCT26-100000-P" || list[0].OptionType != "put" {
		t.Fatalf("unexpected instruments: %+v", list)
	}
}

func TestGetInstrumentNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid params"}}`)
	})

	if _, err := c.GetInstrument(context.Background(), "BTC-23OCT26-1-P"); err == nil {
		t.Fatal("expected error for unknown instrument")
	}
}

func TestBuy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		q := r.URL.Query()
		if q.Get("instrument_name") != "BTC-23OCT26-100000-P" || q.Get("amount") != "0.1" || q.Get("type") != "market" || q.Get("label") != "run-1" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"order":{"order_id":"ETH-1","order_state":"filled","price":"market_price","average_price":0.0215,"filled_amount":0.1},"trades":[{"trade_id":"t1","price":0.0215,"amount":0.1}]}}`)
	})

	res, err := c.Buy(context.Background(), "tok", BuyRequest{
		InstrumentName: "BTC-23OCT26-100000-P",
		Amount:         "0.1",
		Type:           "market",
		Label:          "run-1",
	})
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	price, ok := res.Order.ExecutionPrice()
	if !ok || price != 0.0215 {
		t.Fatalf("unexpected execution price: %v %v", price, ok)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("unexpected trades: %+v", res.Trades)
	}
}

func TestBuyErrorCarriesRawBody(t *testing.T) {
	body := `{"jsonrpc":"2.0","error":{"code":10009,"message":"not_enough_funds"}}`
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, body)
	})

	_, err := c.Buy(context.Background(), "tok", BuyRequest{InstrumentName: "BTC-23OCT26-100000-P", Amount: "0.1", Type: "market"})
	if err == nil || !strings.Contains(err.Error(), body) {
		t.Fatalf("expected raw body in error, got %v", err)
	}
}

func TestNonJSONResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>bad gateway</html>")
	})

	_, err := c.GetIndexPrice(context.Background(), "btc_usd")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("expected APIError with status 502, got %v", err)
	}
}

func TestGetIndexPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("index_name") != "btc_usd" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"jsonrpc":"2.0","result":{"index_price":110000.5,"estimated_delivery_price":110000.5}}`)
	})

	price, err := c.GetIndexPrice(context.Background(), "btc_usd")
	if err != nil {
		t.Fatalf("GetIndexPrice: %v", err)
	}
	if price != 110000.5 {
		t.Fatalf("unexpected index price: %v", price)
	}
}

func TestExecutionPrice(t *testing.T) {
	avg := 0.03
	zero := 0.0
	cases := []struct {
		name  string
		order Order
		want  float64
		ok    bool
	}{
		{"numeric price", Order{Price: []byte("0.025"), AveragePrice: &avg}, 0.025, true},
		{"market price string", Order{Price: []byte(`"market_price"`), AveragePrice: &avg}, 0.03, true},
		{"missing price", Order{AveragePrice: &avg}, 0.03, true},
		{"zero price", Order{Price: []byte("0"), AveragePrice: &avg}, 0.03, true},
		{"nothing usable", Order{Price: []byte("null"), AveragePrice: &zero}, 0, false},
		{"no fields", Order{}, 0, false},
	}
	for _, c := range cases {
		got, ok := c.order.ExecutionPrice()
		if got != c.want || ok != c.ok {
			t.Errorf("%s: got %v,%v want %v,%v", c.name, got, ok, c.want, c.ok)
		}
	}
}

func TestNewClientRejectsUnknownTransport(t *testing.T) {
	if _, err := NewClient(config.DeribitConfig{Transport: "grpc"}); err == nil {
		t.Fatal("expected error for unknown transport")
	}
}
