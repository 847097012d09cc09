package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/fuchiball-booking/internal/config"
	"github.com/iliyamo/fuchiball-booking/internal/database"
	"github.com/iliyamo/fuchiball-booking/internal/handler"
	"github.com/iliyamo/fuchiball-booking/internal/identity"
	"github.com/iliyamo/fuchiball-booking/internal/middleware"
	"github.com/iliyamo/fuchiball-booking/internal/queue"
	"github.com/iliyamo/fuchiball-booking/internal/repository"
	"github.com/iliyamo/fuchiball-booking/internal/reservation"
	"github.com/iliyamo/fuchiball-booking/internal/router"
	"github.com/iliyamo/fuchiball-booking/internal/service"
	"github.com/iliyamo/fuchiball-booking/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read .env")
	}
	cfg := config.Load()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migrate schema")
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	profiles := repository.NewProfileRepo(db)
	store := repository.NewReservationStore(db)
	policy := identity.NewPolicy(users)

	sessions := identity.NewSessions()
	sessions.Subscribe(identity.LogListener{})

	deps := reservation.Deps{Store: store, Policy: policy}
	var cache reservation.CacheInvalidator
	if purger := middleware.NewRedisCachePurger(cacheCfg, rdb); purger != nil {
		cache = purger
		deps.Cache = purger
	}

	var proofs echo.HandlerFunc
	if cfg.MongoURI != "" {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		client, mdb, err := storage.Connect(mctx, cfg.MongoURI)
		cancel()
		if err != nil {
			log.WithError(err).Fatal("connect proof storage")
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		fs, err := storage.NewGridFS(mdb, cfg.ProofBucket, "/v1/")
		if err != nil {
			log.WithError(err).Fatal("open proof bucket")
		}
		deps.Objects = fs
		proofs = handler.Proof(fs)
	} else {
		log.Warn("MONGODB_URI not set; payment proof uploads disabled")
	}

	switch cfg.EventBroker {
	case "amqp":
		pub := service.NewAMQPPublisher(cfg.AMQPURL)
		defer pub.Close()
		deps.Events = pub
		if cfg.AuditConsumer {
			go queue.StartAuditConsumer(ctx, cfg.AMQPURL, cfg.AuditLogDir)
		}
	case "nats":
		nc, err := service.ConnectNATS(cfg.NATSURL, cfg.NATSToken)
		if err != nil {
			log.WithError(err).Warn("nats unavailable; events disabled")
			deps.Events = service.NopPublisher{}
			break
		}
		defer nc.Drain()
		deps.Events = service.NewNATSPublisher(nc)
	default:
		deps.Events = service.NopPublisher{}
	}

	svc := reservation.New(reservation.Config{
		Mode:          reservation.Mode(cfg.ReservationMode),
		Location:      cfg.Venue,
		MaxProofBytes: cfg.ProofMaxBytes,
	}, deps)
	go svc.RunSweeper(ctx, cfg.SweepInterval)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	e.Use(echomw.BodyLimit(cfg.BodyLimit))

	limit := middleware.NewTokenBucket(rlCfg, rdb)
	router.Public(e, handler.Health(db), handler.NewCatalogHandler(store.Matches), proofs,
		middleware.NewRedisCache(cacheCfg, rdb), limit)
	router.Auth(e, handler.NewAuthHandler(cfg, users, tokens, sessions), cfg.JWTSecret, limit)
	router.Player(e, handler.NewReservationHandler(svc), handler.NewProfileHandler(profiles), cfg.JWTSecret, limit)
	router.Admin(e,
		handler.NewAdminMatchHandler(store.Matches, store.Participants, cache),
		handler.NewAdminReviewHandler(svc),
		cfg.JWTSecret, policy)

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "mode": cfg.ReservationMode}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
