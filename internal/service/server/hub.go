package server

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ledgerchat/internal/utils/log"
)

// hub fans coordination events out between client instances of the
// same conversation scope. It never inspects payloads; every frame a
// connection sends is relayed to the other connections on its scope.
type hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func newHub() *hub {
	return &hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (h *hub) handleWS() http.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // dev server, allow all origins
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		scope := r.URL.Query().Get("scope")
		if scope == "" {
			http.Error(w, "scope cannot be empty", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "failed to upgrade", http.StatusInternalServerError)
			return
		}

		h.add(scope, conn)
		go h.relay(scope, conn)
	}
}

func (h *hub) add(scope string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[scope] == nil {
		h.conns[scope] = make(map[*websocket.Conn]struct{})
	}
	h.conns[scope][conn] = struct{}{}
}

func (h *hub) remove(scope string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[scope], conn)
	if len(h.conns[scope]) == 0 {
		delete(h.conns, scope)
	}
}

func (h *hub) relay(scope string, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("event socket closed", zap.Error(err))
			h.remove(scope, conn)
			conn.Close()
			return
		}

		h.mu.Lock()
		peers := make([]*websocket.Conn, 0, len(h.conns[scope]))
		for peer := range h.conns[scope] {
			if peer != conn {
				peers = append(peers, peer)
			}
		}
		h.mu.Unlock()

		for _, peer := range peers {
			if err := peer.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug("event relay write failed", zap.Error(err))
			}
		}
	}
}
