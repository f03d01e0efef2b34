package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error loading .env file", "err", err)
	}

	cfgPath, explicit := os.LookupEnv("CONFIG_FILE")
	if !explicit {
		cfgPath = "config.yaml"
	}
	cfg, err := LoadConfig(cfgPath, explicit)
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.slogLevel()}))

	db, d, err := openDB(context.Background(), cfg.Database)
	if err != nil {
		log.Error("db", "err", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	store := NewStore(db, d)
	store.bcryptCost = cfg.BcryptCost
	if err := store.Migrate(context.Background()); err != nil {
		log.Error("migrate", "err", err)
		os.Exit(1)
	}

	api := newAPI(store, log)
	srv := &http.Server{Addr: cfg.Addr, Handler: newHandler(cfg, api, log),
		ReadTimeout: 15 * time.Second, ReadHeaderTimeout: 10 * time.Second,
		// SSE streams are long lived, so no WriteTimeout
		IdleTimeout: 120 * time.Second}

	go func() {
		log.Info("listening", "addr", cfg.Addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) && err != nil {
			log.Error("listen", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")
	ctxSh, cancelSh := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSh()
	if err := srv.Shutdown(ctxSh); err != nil {
		log.Error("shutdown", "err", err)
	}
}

// newHandler wires the routes behind CORS, panic recovery and request logging.
func newHandler(cfg Config, a *api, log *slog.Logger) http.Handler {
	r := mux.NewRouter()
	a.routes(r)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORS.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "PUT", "POST", "DELETE", "PATCH", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-ID", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(log.Handler(), slog.LevelError)),
	)
	return withLogging(log, recovery(cors(r)))
}
