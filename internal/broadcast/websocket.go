package broadcast

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ledgerchat/internal/utils/log"
)

// WSPort broadcasts through the store's /events websocket hub; the hub
// fans every event out to the other instances subscribed to the same
// scope. Used when no redis is configured.
type WSPort struct {
	conn  *websocket.Conn
	scope string

	mu      sync.Mutex
	handler Handler
	closed  bool
}

// DialWS connects to the hub at host for scope. Callers fall back to
// Noop when the dial fails.
func DialWS(host, scope string) (*WSPort, error) {
	params := url.Values{
		"scope": []string{scope},
	}
	u := url.URL{
		Scheme:   "ws",
		Host:     host,
		Path:     "/events",
		RawQuery: params.Encode(),
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	p := &WSPort{conn: conn, scope: scope}
	go p.readLoop()
	return p, nil
}

func (p *WSPort) Publish(_ context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	return p.conn.WriteJSON(ev)
}

func (p *WSPort) Subscribe(h Handler) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

func (p *WSPort) readLoop() {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			log.Debug("event socket closed", zap.Error(err))
			p.Close()
			return
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Debug("drop malformed broadcast event", zap.Error(err))
			continue
		}

		p.mu.Lock()
		handler := p.handler
		p.mu.Unlock()
		if handler != nil {
			handler(ev)
		}
	}
}

func (p *WSPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}
