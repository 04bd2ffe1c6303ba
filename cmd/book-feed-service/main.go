package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/book-feed/ws"
	bcache "github.com/lbianlbian/progv2/internal/exchange-service/cache"
	"github.com/lbianlbian/progv2/internal/shared/cache"
	"github.com/lbianlbian/progv2/internal/shared/config"
	"github.com/lbianlbian/progv2/internal/shared/logger"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	book := bcache.New(redisClient)

	// Hub WebSocket alimentado pelo canal Pub/Sub do livro
	hub := ws.NewHub(func(*http.Request) bool { return true })
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ws.StartRedisSubscriber(ctx, redisClient, hub)

	// Servidor de métricas e health em porta separada
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			hctx, hcancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer hcancel()
			if err := redisClient.Ping(hctx).Err(); err != nil {
				http.Error(w, "redis not healthy: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health server starting", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	// API pública: snapshot REST do livro e feed WebSocket
	r := chi.NewRouter()
	r.Get("/v1/book/{outcomeKey}", func(w http.ResponseWriter, req *http.Request) {
		key := chi.URLParam(req, "outcomeKey")
		orders, err := book.ByOutcome(req.Context(), key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeOrders(w, orders)
	})
	r.Get("/ws", hub.HandleWS)

	addr := ":" + cfg.HTTPPort
	log.Info("book-feed listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, r); err != nil && err != http.ErrServerClosed {
		log.Fatal("book-feed failed", zap.Error(err))
	}
}

func writeOrders(w http.ResponseWriter, orders []bcache.OpenOrder) {
	// Mantém resposta [] em vez de null para lista vazia
	if orders == nil {
		orders = []bcache.OpenOrder{}
	}
	_ = json.NewEncoder(w).Encode(orders)
}
