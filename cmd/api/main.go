package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"chippy/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("[SERVER] Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := fiberServer.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("[SERVER] Forced shutdown with error: %v", err)
	}
	if err := fiberServer.Shutdown(); err != nil {
		log.Printf("[SERVER] Shutdown error: %v", err)
	}

	done <- true
}

func main() {
	fiberServer := server.New()
	fiberServer.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(fiberServer, done)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := fiberServer.Listen(":" + port); err != nil {
		log.Fatalf("[SERVER] Listen error: %v", err)
	}

	<-done
	log.Println("[SERVER] Graceful shutdown complete")
}
