package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pokerarena/internal/apikey"
	"pokerarena/internal/codec"
	"pokerarena/internal/escrow"
	"pokerarena/internal/events"
	"pokerarena/internal/gateway"
	"pokerarena/internal/manager"
	"pokerarena/internal/store"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debugf("[Server] No .env file: %v", err)
	}
	configureLogging()

	storeSvc, storeMode, err := store.NewServiceFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init store: %v", err)
	}
	defer storeSvc.Close()
	keySvc, keyMode, err := apikey.NewServiceFromEnv(storeMode)
	if err != nil {
		log.Fatalf("[Server] Failed to init api key service: %v", err)
	}
	defer keySvc.Close()
	escrowClient, escrowMode, err := escrow.NewClientFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init escrow client: %v", err)
	}
	publisher, eventsMode, err := events.NewPublisherFromEnv()
	if err != nil {
		log.Fatalf("[Server] Failed to init event publisher: %v", err)
	}
	defer publisher.Close()

	mgr, err := manager.New(manager.Deps{
		Store:  storeSvc,
		Escrow: escrowClient,
		Events: publisher,
	})
	if err != nil {
		log.Fatalf("[Server] Failed to init game manager: %v", err)
	}

	hub := gateway.New(func(tableID string) (codec.TableView, error) {
		return mgr.GetTable(tableID, "")
	})
	mgr.SetBroadcaster(hub)
	mgr.Start()

	mux := http.NewServeMux()
	manager.NewHTTPHandler(mgr, hub).RegisterRoutes(mux)
	manager.NewAgentHandler(mgr, keySvc).RegisterRoutes(mux)

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	log.Infof("[Server] Store mode: %s", storeMode)
	log.Infof("[Server] Api key mode: %s", keyMode)
	log.Infof("[Server] Escrow mode: %s", escrowMode)
	log.Infof("[Server] Events mode: %s", eventsMode)
	log.Infof("[Server] Listening on %s", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Server] Failed to start: %v", err)
		}
	case sig := <-stop:
		log.Infof("[Server] Caught %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("[Server] HTTP shutdown: %v", err)
	}
	if err := mgr.Close(); err != nil {
		log.Warnf("[Server] Manager shutdown: %v", err)
	}
	log.Infof("[Server] Shutdown complete")
}

func configureLogging() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		lvl, err := log.ParseLevel(raw)
		if err != nil {
			log.Warnf("[Server] Bad LOG_LEVEL %q: %v", raw, err)
			return
		}
		log.SetLevel(lvl)
	}
}
