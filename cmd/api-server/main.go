package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/frontdesk/reservations/internal/api"
	"github.com/frontdesk/reservations/internal/booking"
	"github.com/frontdesk/reservations/internal/clinic"
	"github.com/frontdesk/reservations/internal/config"
	"github.com/frontdesk/reservations/internal/db"
	redisclient "github.com/frontdesk/reservations/internal/redis"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s", cfg.Env, cfg.HTTPPort)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer pgPool.Close()
	log.Println("connected to Postgres")

	schemaCtx, cancelSchema := context.WithTimeout(rootCtx, 10*time.Second)
	err = db.EnsureSchema(schemaCtx, pgPool)
	cancelSchema()
	if err != nil {
		log.Fatalf("schema error: %v", err)
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("redis connection error: %v", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Printf("error closing redis: %v", err)
		}
	}()
	log.Println("connected to Redis")

	bookingSvc := booking.NewService(booking.NewPgRepository(pgPool))

	locker := redisclient.NewRedisResourceLocker(rdb, cfg.LockTTL)
	clinicSvc := clinic.NewService(clinic.NewPgRepository(pgPool), locker)

	router := api.NewRouter(api.RouterConfig{
		Booking: bookingSvc,
		Clinic:  clinicSvc,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()

	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}
