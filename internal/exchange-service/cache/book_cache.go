package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/pkg/contracts/events"
)

// ChannelBookBroadcast é o canal pub/sub de mudanças do livro aberto.
const ChannelBookBroadcast = "book_updates_broadcast"

// OpenOrder é a visão cacheada de uma ordem em repouso.
type OpenOrder struct {
	Slot        string `json:"slot"`
	Sport       uint8  `json:"sport"`
	League      uint32 `json:"league"`
	Event       uint64 `json:"event"`
	Period      uint8  `json:"period"`
	Market      uint16 `json:"market"`
	Player      uint32 `json:"player"`
	OpenSide    uint8  `json:"open_side"`
	Stake0      uint64 `json:"stake0"`
	Stake1      uint64 `json:"stake1"`
	OpenOdds    string `json:"open_odds"`
	ToAggregate bool   `json:"to_aggregate"`
	FreeBet     bool   `json:"free_bet"`
}

// BookUpdate é o frame publicado no canal de broadcast.
type BookUpdate struct {
	// Kind: open | match | partial_match | cancel
	Kind string `json:"kind"`
	// OutcomeKey agrupa assinaturas do feed por desfecho.
	OutcomeKey string     `json:"outcome_key"`
	Order      *OpenOrder `json:"order,omitempty"`
	Slot       string     `json:"slot"`
}

// BookCache mantém o livro de ordens abertas no Redis: um registro JSON por
// slot e um conjunto de slots por desfecho, mais broadcast de mudanças.
type BookCache struct {
	R *redis.Client
}

func New(r *redis.Client) *BookCache { return &BookCache{R: r} }

func keySlot(slot string) string { return "book:slot:" + slot }

// OutcomeKey deriva a chave de agrupamento de um desfecho.
func OutcomeKey(o engine.Outcome) string {
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d", o.Sport, o.League, o.Event, o.Period, o.Market, o.Player)
}

func keyOutcome(outcomeKey string) string { return "book:outcome:" + outcomeKey }

// openOrderOf projeta o registro na visão cacheada. Registro sem lado aberto
// devolve nil.
func openOrderOf(slot string, rec *engine.BetRecord) *OpenOrder {
	var side uint8
	switch {
	case rec.Wallet0.IsBlank() && !rec.Wallet1.IsBlank():
		side = 0
	case rec.Wallet1.IsBlank() && !rec.Wallet0.IsBlank():
		side = 1
	default:
		return nil
	}
	return &OpenOrder{
		Slot:        slot,
		Sport:       rec.Outcome.Sport,
		League:      rec.Outcome.League,
		Event:       rec.Outcome.Event,
		Period:      rec.Outcome.Period,
		Market:      rec.Outcome.Market,
		Player:      rec.Outcome.Player,
		OpenSide:    side,
		Stake0:      rec.Stake0,
		Stake1:      rec.Stake1,
		OpenOdds:    events.DisplayOdds(rec.Stake0, rec.Stake1, side),
		ToAggregate: rec.ToAggregate,
		FreeBet:     rec.IsFreeBet,
	}
}

// Upsert registra/atualiza uma ordem aberta e publica a mudança. Registros
// sem lado aberto são removidos do livro.
func (c *BookCache) Upsert(ctx context.Context, kind, slot string, rec *engine.BetRecord) error {
	outcomeKey := OutcomeKey(rec.Outcome)
	order := openOrderOf(slot, rec)
	if order == nil {
		return c.remove(ctx, kind, outcomeKey, slot)
	}

	b, _ := json.Marshal(order)
	if err := c.R.Set(ctx, keySlot(slot), b, 0).Err(); err != nil {
		return err
	}
	if err := c.R.SAdd(ctx, keyOutcome(outcomeKey), slot).Err(); err != nil {
		return err
	}
	return c.broadcast(ctx, BookUpdate{Kind: kind, OutcomeKey: outcomeKey, Order: order, Slot: slot})
}

// Remove tira uma ordem do livro (cancelada ou totalmente casada).
func (c *BookCache) Remove(ctx context.Context, kind string, rec *engine.BetRecord, slot string) error {
	return c.remove(ctx, kind, OutcomeKey(rec.Outcome), slot)
}

func (c *BookCache) remove(ctx context.Context, kind, outcomeKey, slot string) error {
	if err := c.R.Del(ctx, keySlot(slot)).Err(); err != nil {
		return err
	}
	if err := c.R.SRem(ctx, keyOutcome(outcomeKey), slot).Err(); err != nil {
		return err
	}
	return c.broadcast(ctx, BookUpdate{Kind: kind, OutcomeKey: outcomeKey, Slot: slot})
}

// ByOutcome lista as ordens abertas de um desfecho.
func (c *BookCache) ByOutcome(ctx context.Context, outcomeKey string) ([]OpenOrder, error) {
	slots, err := c.R.SMembers(ctx, keyOutcome(outcomeKey)).Result()
	if err != nil {
		return nil, err
	}
	orders := make([]OpenOrder, 0, len(slots))
	for _, slot := range slots {
		b, err := c.R.Get(ctx, keySlot(slot)).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var o OpenOrder
		if err := json.Unmarshal(b, &o); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *BookCache) broadcast(ctx context.Context, upd BookUpdate) error {
	b, _ := json.Marshal(upd)
	return c.R.Publish(ctx, ChannelBookBroadcast, b).Err()
}
