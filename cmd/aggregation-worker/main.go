package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/aggregation-worker/matcher"
	"github.com/lbianlbian/progv2/internal/exchange-service/cache"
	"github.com/lbianlbian/progv2/internal/exchange-service/dto"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/shared/config"
	"github.com/lbianlbian/progv2/internal/shared/kafka"
	"github.com/lbianlbian/progv2/internal/shared/logger"
	ev "github.com/lbianlbian/progv2/pkg/contracts/events"
)

var (
	ordersConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aggregation_orders_consumed_total",
		Help: "Ordens agregáveis consumidas do Kafka.",
	})
	pairsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_pairs_matched_total",
		Help: "Pares complementares casados pelo operador, por modo.",
	}, []string{"mode"})
	matchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aggregation_match_failures_total",
		Help: "Falhas ao casar pares, por fase.",
	}, []string{"phase"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Kafka consumer: consome eventos order_opened para montar o livro do operador
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  strings.Split(cfg.KafkaBrokers, ","),
		GroupID:  "aggregation-worker",
		Topic:    cfg.TopicOrderOpened,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicOrderOpenedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOrderOpenedDLQ)
		defer dlqWriter.Close()
	}

	book := matcher.NewBook()
	ctx := context.Background()

	// Ordens canceladas ou casadas fora do worker saem do livro; sem isso uma
	// entrada obsoleta envenenaria o próximo par.
	go evictOnEvent(ctx, log, book, cfg.KafkaBrokers, cfg.TopicOrderCancelled)
	go evictOnEvent(ctx, log, book, cfg.KafkaBrokers, cfg.TopicOrderMatched)

	// Servidor HTTP para métricas Prometheus e healthcheck
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	log.Info("aggregation-worker started",
		zap.String("consume", cfg.TopicOrderOpened),
		zap.String("exchange", cfg.ExchangeURL),
	)

	// Loop principal: consome aberturas agregáveis e casa pares complementares
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var opened ev.OrderOpened
		if jerr := json.Unmarshal(msg.Value, &opened); jerr != nil {
			log.Error("unmarshal order_opened", zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value)
			}
			continue
		}
		if !opened.ToAggregate {
			continue
		}
		ordersConsumed.Inc()

		outcome := engine.Outcome{
			Sport:  opened.Sport,
			League: opened.League,
			Event:  opened.Event,
			Period: opened.Period,
			Market: opened.Market,
			Player: opened.Player,
		}
		order := &matcher.Order{
			Slot:       opened.Slot,
			Outcome:    outcome,
			OutcomeKey: cache.OutcomeKey(outcome),
			Side:       opened.Side,
			Stake0:     opened.Stake0,
			Stake1:     opened.Stake1,
		}

		offer(ctx, cfg, log, book, dlqWriter, order)
	}
}

// evictOnEvent consome um tópico de eventos de ordem e remove o slot do
// livro. Eventos de casamentos feitos pelo próprio worker já saíram do livro,
// então a remoção vira um no-op.
func evictOnEvent(ctx context.Context, log *zap.Logger, book *matcher.Book, brokers, topic string) {
	reader := kafka.NewReader(brokers, topic, "aggregation-worker")
	defer reader.Close()
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var evt struct {
			Slot string `json:"slot"`
		}
		if jerr := json.Unmarshal(msg.Value, &evt); jerr != nil || evt.Slot == "" {
			continue
		}
		book.RemoveSlot(evt.Slot)
	}
}

// offer insere a ordem no livro e, havendo par, executa o casamento. Quando
// uma perna falha em definitivo, a ordem suspeita vai para a DLQ e a
// sobrevivente volta ao livro em vez de ser descartada junto.
func offer(ctx context.Context, cfg config.Config, log *zap.Logger, book *matcher.Book, dlq *kafkago.Writer, o *matcher.Order) {
	m, ok := book.Add(o)
	if !ok {
		log.Debug("order resting", zap.String("slot", o.Slot))
		return
	}

	phase, err := matchPair(ctx, cfg, m)
	if err == nil {
		if m.Exact {
			pairsMatched.WithLabelValues("exact").Inc()
		} else {
			pairsMatched.WithLabelValues("partial").Inc()
		}
		return
	}

	matchFailures.WithLabelValues(phase).Inc()
	log.Error("match pair",
		zap.String("phase", phase),
		zap.String("small", m.Small.Slot),
		zap.String("large", m.Large.Slot),
		zap.Error(err),
	)
	if phase == "small" {
		// A menor nem chegou a casar: ela é a suspeita. A maior segue viva e
		// volta ao livro para o próximo par.
		sendToDLQ(ctx, log, dlq, m.Small)
		offer(ctx, cfg, log, book, dlq, m.Large)
		return
	}
	// A menor já casou com sucesso; só a maior é suspeita.
	sendToDLQ(ctx, log, dlq, m.Large)
}

// matchPair executa o casamento de um par complementar como operador:
// 1. Casa por inteiro a ordem de pote menor
// 2. Casa a maior por inteiro (potes iguais) ou parcialmente com o par da menor
// Devolve a fase que falhou junto do erro.
func matchPair(ctx context.Context, cfg config.Config, m *matcher.Match) (string, error) {
	if err := fullMatch(ctx, cfg, m.Small, m.Small.Stake0, m.Small.Stake1); err != nil {
		return "small", err
	}
	if m.Exact {
		if err := fullMatch(ctx, cfg, m.Large, m.Large.Stake0, m.Large.Stake1); err != nil {
			return "large", err
		}
		return "", nil
	}
	if err := partialMatch(ctx, cfg, m.Large, m.Small.Stake0, m.Small.Stake1); err != nil {
		return "partial", err
	}
	return "", nil
}

// sendToDLQ publica a ordem problemática para inspeção e compensação manual.
func sendToDLQ(ctx context.Context, log *zap.Logger, dlq *kafkago.Writer, o *matcher.Order) {
	if dlq == nil {
		return
	}
	payload, _ := json.Marshal(ev.OrderOpened{
		Slot:        o.Slot,
		Sport:       o.Outcome.Sport,
		League:      o.Outcome.League,
		Event:       o.Outcome.Event,
		Period:      o.Outcome.Period,
		Market:      o.Outcome.Market,
		Player:      o.Outcome.Player,
		Side:        o.Side,
		Stake0:      o.Stake0,
		Stake1:      o.Stake1,
		ToAggregate: true,
	})
	if err := kafka.WriteJSON(ctx, dlq, o.Slot, payload); err != nil {
		log.Error("dlq write", zap.String("slot", o.Slot), zap.Error(err))
	}
}

// fullMatch toma o lado aberto de uma ordem com a conta do operador
func fullMatch(ctx context.Context, cfg config.Config, o *matcher.Order, stake0, stake1 uint64) error {
	payload, _ := json.Marshal(dto.MatchOrderRequest{
		OutcomeFields: outcomeFields(o.Outcome),
		Stake0:        stake0,
		Stake1:        stake1,
		Side:          1 - o.Side,
		Source:        cfg.OperatorSource,
		Bettor:        cfg.OperatorIdentity,
	})
	return postExchange(ctx, cfg, "/orders/"+o.Slot+"/match", payload)
}

// partialMatch carva da ordem maior uma posição com o par de stakes da menor
func partialMatch(ctx context.Context, cfg config.Config, o *matcher.Order, stake0, stake1 uint64) error {
	payload, _ := json.Marshal(dto.PartialMatchOrderRequest{
		MatchOrderRequest: dto.MatchOrderRequest{
			OutcomeFields: outcomeFields(o.Outcome),
			Stake0:        stake0,
			Stake1:        stake1,
			Side:          1 - o.Side,
			Source:        cfg.OperatorSource,
			Bettor:        cfg.OperatorIdentity,
		},
		RentPayer: cfg.OperatorIdentity,
	})
	return postExchange(ctx, cfg, "/orders/"+o.Slot+"/match-partial", payload)
}

func outcomeFields(o engine.Outcome) dto.OutcomeFields {
	return dto.OutcomeFields{
		Sport:  o.Sport,
		League: o.League,
		Event:  o.Event,
		Period: o.Period,
		Market: o.Market,
		Player: o.Player,
	}
}

const postAttempts = 3

// retryBackoff é ajustável em teste.
var retryBackoff = 500 * time.Millisecond

// postExchange envia a requisição, repetindo falhas transitórias de
// transporte e 5xx. Rejeições do engine (4xx) são definitivas: a ordem foi
// cancelada ou casada fora do worker, e repetir não muda o resultado.
func postExchange(ctx context.Context, cfg config.Config, path string, body []byte) error {
	var lastErr error
	for attempt := 0; attempt < postAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * retryBackoff)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.ExchangeURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode < 300 {
			return nil
		}
		if resp.StatusCode < 500 {
			return errors.New("exchange http " + resp.Status)
		}
		lastErr = errors.New("exchange http " + resp.Status)
	}
	return lastErr
}
