package deribit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("websocket connection closed")

type wsRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      uint64         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type wsReply struct {
	raw []byte
	err error
}

// WSTransport sends JSON-RPC 2.0 frames over one websocket connection and
// matches replies by id. Authentication is connection scoped: public/auth
// issued through the transport authorises later private calls on the same
// connection, so the token argument is not sent.
type WSTransport struct {
	url    string
	dialer *websocket.Dialer
	header http.Header
	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan wsReply

	writeMu sync.Mutex
}

func NewWSTransport(wsURL string, handshakeTimeout time.Duration, userAgent string) *WSTransport {
	header := http.Header{}
	if userAgent != "" {
		header.Set("User-Agent", userAgent)
	}
	return &WSTransport{
		url:     wsURL,
		dialer:  &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: handshakeTimeout},
		header:  header,
		pending: make(map[uint64]chan wsReply),
	}
}

func (t *WSTransport) connect(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return t.conn, nil
	}
	conn, _, err := t.dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", t.url, err)
	}
	t.conn = conn
	go t.readLoop(conn)
	return conn, nil
}

func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			t.fail(conn, err)
			return
		}
		var env rpcResponse
		if err := json.Unmarshal(message, &env); err != nil || env.ID == 0 {
			// notifications and heartbeats carry no id
			continue
		}
		t.mu.Lock()
		ch, ok := t.pending[env.ID]
		delete(t.pending, env.ID)
		t.mu.Unlock()
		if ok {
			ch <- wsReply{raw: message}
		}
	}
}

// fail drops the connection and wakes every waiting caller.
func (t *WSTransport) fail(conn *websocket.Conn, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == conn {
		t.conn = nil
	}
	for id, ch := range t.pending {
		ch <- wsReply{err: fmt.Errorf("%w: %v", errConnClosed, cause)}
		delete(t.pending, id)
	}
	_ = conn.Close()
}

func (t *WSTransport) Call(ctx context.Context, method string, params map[string]any, _ string) (json.RawMessage, error) {
	conn, err := t.connect(ctx)
	if err != nil {
		return nil, err
	}

	id := t.nextID.Add(1)
	ch := make(chan wsReply, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	t.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}
	err = conn.WriteJSON(wsRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	t.writeMu.Unlock()
	if err != nil {
		t.forget(id)
		t.fail(conn, err)
		return nil, fmt.Errorf("deribit %s write failed: %w", method, err)
	}

	select {
	case reply := <-ch:
		if reply.err != nil {
			return nil, fmt.Errorf("deribit %s: %w", method, reply.err)
		}
		return decodeResponse(method, http.StatusOK, reply.raw)
	case <-ctx.Done():
		t.forget(id)
		return nil, ctx.Err()
	}
}

func (t *WSTransport) forget(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return conn.Close()
}
