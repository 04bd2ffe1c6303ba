package ws_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lbianlbian/progv2/internal/book-feed/ws"
	"github.com/lbianlbian/progv2/internal/exchange-service/cache"
)

func dialHub(t *testing.T, hub *ws.Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *websocket.Conn, key string) {
	t.Helper()
	if err := conn.WriteJSON(ws.ClientMsg{Type: "subscribe", OutcomeKey: key}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// ping/pong confirma que o hub já processou o subscribe
	if err := conn.WriteJSON(ws.ClientMsg{Type: "ping"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var pong map[string]string
	if err := conn.ReadJSON(&pong); err != nil || pong["type"] != "pong" {
		t.Fatalf("want pong, got %v err %v", pong, err)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := ws.NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, conn, "3:42:9001:1:7:0")

	hub.Broadcast(cache.BookUpdate{Kind: "open", OutcomeKey: "3:42:9001:1:7:0", Slot: "s1"})
	hub.Broadcast(cache.BookUpdate{Kind: "cancel", OutcomeKey: "9:1:1:0:0:0", Slot: "other"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var upd cache.BookUpdate
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if upd.Slot != "s1" || upd.Kind != "open" {
		t.Fatalf("unexpected update: %+v", upd)
	}

	// A segunda broadcast era de outro desfecho: nada mais chega.
	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if err := conn.ReadJSON(&upd); err == nil {
		t.Fatalf("got update for unsubscribed outcome: %+v", upd)
	}
}

func TestUnsubscribeStopsUpdates(t *testing.T) {
	hub := ws.NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, conn, "3:42:9001:1:7:0")

	if err := conn.WriteJSON(ws.ClientMsg{Type: "unsubscribe", OutcomeKey: "3:42:9001:1:7:0"}); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	subscribe(t, conn, "9:1:1:0:0:0") // serializa com o unsubscribe via pong

	hub.Broadcast(cache.BookUpdate{Kind: "open", OutcomeKey: "3:42:9001:1:7:0", Slot: "s1"})
	hub.Broadcast(cache.BookUpdate{Kind: "open", OutcomeKey: "9:1:1:0:0:0", Slot: "s2"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var upd cache.BookUpdate
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if upd.Slot != "s2" {
		t.Fatalf("update from unsubscribed outcome leaked: %+v", upd)
	}
}

// Pings e broadcasts concorrentes escrevem na mesma conexão; com -race este
// teste acusa escrita dupla no websocket.
func TestConcurrentPingAndBroadcast(t *testing.T) {
	hub := ws.NewHub(func(*http.Request) bool { return true })
	conn := dialHub(t, hub)
	subscribe(t, conn, "3:42:9001:1:7:0")

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			hub.Broadcast(cache.BookUpdate{Kind: "open", OutcomeKey: "3:42:9001:1:7:0", Slot: "s"})
		}
		close(done)
	}()

	for i := 0; i < 50; i++ {
		if err := conn.WriteJSON(ws.ClientMsg{Type: "ping"}); err != nil {
			t.Fatalf("ping: %v", err)
		}
	}

	// Drena tudo o que o servidor escreveu até as broadcasts terminarem.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	received := 0
	for received < 100 {
		var raw map[string]any
		if err := conn.ReadJSON(&raw); err != nil {
			t.Fatalf("read after %d messages: %v", received, err)
		}
		received++
	}
	<-done
	wg.Wait()
}
