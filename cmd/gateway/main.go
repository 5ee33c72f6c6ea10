package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agriconnect.org/internal/config"
	"agriconnect.org/internal/gateway"
	"agriconnect.org/internal/obs"
)

var version = "1.0.0"

func main() {
	obs.Init()
	obs.InitBuildInfo("agri-gateway", version)

	cfg := config.MustLoadGateway()

	rules := gateway.DefaultRules(cfg.AuthServiceURL, cfg.MainServiceURL)
	router, err := gateway.New(rules, cfg.AllowedOrigins, cfg.UpstreamTimeout)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           obs.Instrument(gateway.AccessLog(router)),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting agri-gateway %s on %s", version, srv.Addr)
	log.Printf("Routing /api/auth -> %s, /api/{farmer,marketplace,admin} -> %s",
		cfg.AuthServiceURL, cfg.MainServiceURL)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
