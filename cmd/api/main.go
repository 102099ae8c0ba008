package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"authchat/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	users, closeUsers, err := core.OpenUserRepository(ctx, cfg)
	if err != nil {
		// malformed URL or unsupported scheme; an unreachable server is not an error here
		log.Fatalf("invalid database configuration: %v", err)
	}
	defer closeUsers()
	log.Printf("user store opened (%s)", cfg.UsersCollection)

	var sessionStore core.SessionStore
	switch cfg.SessionStore {
	case "redis":
		redisClient, err := core.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid redis configuration: %v", err)
		}
		defer redisClient.Close()
		sessionStore = core.NewRedisSessionStore(redisClient)
	default:
		mem := core.NewMemorySessionStore()
		go mem.RunSweeper(ctx, time.Minute)
		sessionStore = mem
	}

	metrics := core.NewProcessMetrics()
	authService := core.NewRepositoryAuthService(users, cfg.BcryptCost, cfg.StoreTimeout)
	sessionManager := core.NewSessionManager(cfg, sessionStore)
	hub := core.NewPresenceHub(metrics)

	router := core.NewRouter(cfg, sessionManager, authService, hub, metrics)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(hub.CloseAll)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("starting api server on %s (session store: %s)", srv.Addr, cfg.SessionStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
