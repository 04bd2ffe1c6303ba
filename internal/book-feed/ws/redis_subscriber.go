package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	bcache "github.com/lbianlbian/progv2/internal/exchange-service/cache"
)

// StartRedisSubscriber inicia uma goroutine que escuta o canal Redis Pub/Sub
// do livro e repassa as atualizações recebidas para todos os clientes
// WebSocket conectados via Hub
//
// Funcionamento:
// - Recebe mensagens JSON do canal Redis
// - Desserializa para cache.BookUpdate
// - Chama hub.Broadcast para enviar aos clientes inscritos no desfecho
func StartRedisSubscriber(ctx context.Context, r *redis.Client, hub *Hub) {
	sub := r.Subscribe(ctx, bcache.ChannelBookBroadcast)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close() // encerra a inscrição ao finalizar o contexto
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var upd bcache.BookUpdate
				if err := json.Unmarshal([]byte(msg.Payload), &upd); err != nil {
					log.Printf("ws subscriber unmarshal error: %v", err)
					continue
				}
				hub.Broadcast(upd) // envia atualização para os inscritos
			}
		}
	}()
}
