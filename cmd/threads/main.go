package main

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/auth"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/config"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/db"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/events"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/httpserver"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/logging"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/natsconn"
	"github.com/SwapCodesDev/farmingo-sub000/internal/platform/run"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/fanout"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/handlers"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/service"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/store"
	"github.com/SwapCodesDev/farmingo-sub000/internal/threads/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	st, closeStore := initStore(cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	hub := fanout.NewHub()
	defer hub.Close()

	instanceID := uuid.NewString()

	// NATS is optional: without it fan-out stays instance-local.
	var pub *events.Publisher
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName + "-" + instanceID})
	if err != nil {
		log.Warn("nats unavailable, fan-out is instance-local", zap.Error(err))
	} else {
		defer nc.Close()
		if js, jsErr := nc.JetStream(); jsErr != nil {
			log.Warn("jetstream unavailable", zap.Error(jsErr))
		} else {
			subjects := []string{events.SubjectThreadPrefix + "*", events.SubjectPermissionDenied}
			if err := natsconn.EnsureStream(js, "THREADS", subjects); err != nil {
				log.Warn("jetstream stream setup failed", zap.Error(err))
			} else {
				pub = events.New(js, log, instanceID)
			}
		}
	}

	svc := service.New(st, hub, pub, log)

	verifier := auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)

	// Public reads
	r.Get("/v1/posts/{post_id}/thread", handlers.GetThread(svc))
	r.Get("/v1/posts/{post_id}/stream", handlers.StreamThread(svc))

	// Mutations require a verified identity
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/posts", handlers.CreatePost(svc))
		r.Delete("/v1/posts/{post_id}", handlers.DeletePost(svc))
		r.Post("/v1/posts/{post_id}/comments", handlers.CreateComment(svc))
		r.Put("/v1/comments/{comment_id}", handlers.UpdateComment(svc))
		r.Delete("/v1/posts/{post_id}/comments/{comment_id}", handlers.DeleteComment(svc))
		r.Post("/v1/posts/{post_id}/vote", handlers.VotePost(svc))
		r.Post("/v1/comments/{comment_id}/vote", handlers.VoteComment(svc))
		r.Put("/v1/posts/{post_id}/pin", handlers.PinComment(svc))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			relay := &worker.Relay{Store: st, Hub: hub, Log: log, Source: instanceID}
			relay.Start(ctx, nc)
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initStore selects the Store backend. In production (APP_ENV=production)
// a working Postgres connection is required and the process terminates
// otherwise; development falls back to the in-memory store.
func initStore(cfg config.AppConfig, log *zap.Logger) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory store (development only)")
		return store.NewInMemoryStore(), nil
	}

	pool, err := db.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory store", zap.Error(err))
		return store.NewInMemoryStore(), nil
	}

	log.Info("thread store: postgres")
	return store.NewPostgresStore(pool), pool.Close
}
