package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lbianlbian/progv2/internal/exchange-service/cache"
	"github.com/lbianlbian/progv2/internal/exchange-service/custody"
	"github.com/lbianlbian/progv2/internal/exchange-service/dispatch"
	"github.com/lbianlbian/progv2/internal/exchange-service/engine"
	ehttp "github.com/lbianlbian/progv2/internal/exchange-service/http"
	kpub "github.com/lbianlbian/progv2/internal/exchange-service/producer"
	"github.com/lbianlbian/progv2/internal/exchange-service/repo"
	scache "github.com/lbianlbian/progv2/internal/shared/cache"
	"github.com/lbianlbian/progv2/internal/shared/config"
	"github.com/lbianlbian/progv2/internal/shared/db"
	"github.com/lbianlbian/progv2/internal/shared/kafka"
	"github.com/lbianlbian/progv2/internal/shared/logger"
	"github.com/lbianlbian/progv2/internal/shared/metrics"
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

	// Redis
	rdb, err := scache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers (um por tópico de transição)
	openedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOrderOpened)
	defer openedWriter.Close()
	matchedWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOrderMatched)
	defer matchedWriter.Close()
	cancelledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOrderCancelled)
	defer cancelledWriter.Close()

	// Principals do programa vêm do ambiente, nunca de literais compilados
	principals, err := loadPrincipals(cfg)
	if err != nil {
		log.Fatal("principals", zap.Error(err))
	}

	// deps
	store := repo.NewPostgres(pg)
	cust := custody.New(cfg.CustodyURL)
	book := cache.New(rdb)
	publ := kpub.NewKafkaPublisher(openedWriter, matchedWriter, cancelledWriter)

	eng := engine.New(log, store, cust, principals, cfg.DepositUnits)
	disp := dispatch.New(log, store, eng)

	// HTTP público
	api := ehttp.NewServer(log, store, disp, cust, book, publ, principals, cfg.DepositUnits)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("exchange-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

// loadPrincipals converte as identidades hex do ambiente nos principals do
// programa.
func loadPrincipals(cfg config.Config) (engine.Principals, error) {
	var p engine.Principals
	var err error
	if p.Admin, err = engine.ParseIdentity(cfg.AdminIdentity); err != nil {
		return p, fmt.Errorf("admin identity: %w", err)
	}
	if p.Operator, err = engine.ParseIdentity(cfg.OperatorIdentity); err != nil {
		return p, fmt.Errorf("operator identity: %w", err)
	}
	if p.Program, err = engine.ParseIdentity(cfg.ProgramIdentity); err != nil {
		return p, fmt.Errorf("program identity: %w", err)
	}
	if p.PoolAccount, err = engine.ParseIdentity(cfg.PoolAccount); err != nil {
		return p, fmt.Errorf("pool account: %w", err)
	}
	if p.CustodyProgram, err = engine.ParseIdentity(cfg.CustodyProgram); err != nil {
		return p, fmt.Errorf("custody program: %w", err)
	}
	return p, nil
}
