package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"agriconnect.org/internal/account"
	"agriconnect.org/internal/cache"
	"agriconnect.org/internal/config"
	"agriconnect.org/internal/httpapi"
	"agriconnect.org/internal/identity"
	"agriconnect.org/internal/obs"
	"agriconnect.org/internal/token"
)

var version = "1.0.0"

func main() {
	obs.Init()
	obs.InitBuildInfo("agri-auth", version)

	cfg := config.MustLoadAuth()

	// Credential store. Without a DSN the service runs on the in-process
	// store, which is enough for local development.
	var (
		db       *sql.DB
		accounts account.Store
	)
	if cfg.PGDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		accounts = account.NewPGStore(db)
	} else {
		log.Println("PG_DSN not set, using in-process account store")
		accounts = account.NewMemStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	sessions := cache.Connect(ctx, cache.Config{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	cancel()

	issuer, err := token.NewIssuer(cfg.JWTSecret, token.WithTTL(cfg.TokenTTL))
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	svc, err := identity.NewService(accounts, sessions, issuer)
	if err != nil {
		log.Fatalf("identity service: %v", err)
	}

	var google *identity.GoogleFlow
	if cfg.GoogleEnabled() {
		google, err = identity.NewGoogleFlow(identity.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.GoogleCallbackURL,
		})
		if err != nil {
			log.Fatalf("google oauth: %v", err)
		}
	} else {
		log.Println("Google OAuth not configured, federated routes disabled")
	}

	api := httpapi.New(httpapi.Options{
		Identity:       svc,
		Google:         google,
		ReadyProbe:     httpapi.ReadyProbe{DB: db},
		Version:        version,
		FrontendURL:    cfg.FrontendURL,
		SecureCookies:  !cfg.Development(),
		CookieTTL:      cfg.TokenTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		RateBurst:      cfg.RateBurst,
		RatePerSec:     cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	log.Printf("Starting agri-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownCtx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
