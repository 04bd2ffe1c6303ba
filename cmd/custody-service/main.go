package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	chttp "github.com/lbianlbian/progv2/internal/custody-service/http"
	"github.com/lbianlbian/progv2/internal/custody-service/repo"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	"github.com/lbianlbian/progv2/internal/shared/config"
	"github.com/lbianlbian/progv2/internal/shared/db"
	"github.com/lbianlbian/progv2/internal/shared/logger"
	"github.com/lbianlbian/progv2/internal/shared/metrics"
	"github.com/lbianlbian/progv2/internal/shared/poolauth"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// deps
	repository := repo.NewPostgres(pg)

	// Autoridade derivada da pool, recomputada do id do programa oficial.
	program, err := engine.ParseIdentity(cfg.ProgramIdentity)
	if err != nil {
		log.Fatal("program identity", zap.Error(err))
	}
	poolAuthority := engine.Identity(poolauth.Derive(program)).String()

	// HTTP público
	api := chttp.NewServer(log, repository, poolAuthority)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("custody-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
