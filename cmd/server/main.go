package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/parley-chat/parley/internal/history"
	"github.com/parley-chat/parley/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; env vars may come from anywhere.
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("PARLEY_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	server.SetConfig(cfg)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open history store: %v", err)
	}
	defer closeStore()

	server.ConfigureRouter(store)

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(cfg.Port, mux)

	go func() {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutdown signal received")
	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := server.GetRouter().Shutdown(shutdownTimeout); err != nil {
		log.Printf("Router shutdown incomplete: %v", err)
	}
}

// openStore connects the configured Postgres message log, or falls back to
// the in-memory store when no database is enabled.
func openStore(cfg *server.Config) (history.Store, func(), error) {
	if !cfg.Database.Enabled {
		log.Println("No database configured; chat history will not survive restarts")
		return history.NewMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := history.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Connected to history database %q on %s:%d", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	return pg, pg.Close, nil
}
