package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/lbianlbian/progv2/internal/exchange-service/cache"
)

// client embrulha a conexão com um lock de escrita: o pong do loop de leitura
// e o Broadcast do assinante redis escrevem na mesma conexão, e o gorilla só
// admite um escritor por vez.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub gerencia conexões WebSocket e assinaturas do livro de ordens
// subs: mapeia a chave de desfecho para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// outcomeKey -> set of clients
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em desfechos e responde a pings
// Cada cliente pode se inscrever em múltiplas chaves de desfecho
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	cl := &client{conn: conn}

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.OutcomeKey]; !ok {
				h.subs[msg.OutcomeKey] = make(map[*client]struct{})
			}
			h.subs[msg.OutcomeKey][cl] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.OutcomeKey]; ok {
				delete(m, cl)
				if len(m) == 0 {
					delete(h.subs, msg.OutcomeKey)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = cl.writeJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, cl)
	}
	h.mu.Unlock()
}

// Broadcast envia uma atualização do livro para todos os clientes inscritos
// na chave de desfecho correspondente
func (h *Hub) Broadcast(update cache.BookUpdate) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.subs[update.OutcomeKey]))
	for c := range h.subs[update.OutcomeKey] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range clients {
		_ = c.write(websocket.TextMessage, b)
	}
}
