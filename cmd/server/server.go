package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/azzil/mensalidades/be/internal/app"
	"github.com/azzil/mensalidades/be/internal/config"
	duesHandler "github.com/azzil/mensalidades/be/internal/controller/http/dues"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/common/keys"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
)

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func fatal(format string, v ...any) {
	logger.Error(format, v...)
	os.Exit(1)
}

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("load config: %v", err)
		os.Exit(1)
	}
	logger.Initialize(cfg.LogLevel)
	logger.Info("starting server")

	// Resolve the link signing key early so a generated dev key is printed
	// at startup.
	if err := keys.Init(cfg.ConfirmKeyB64, cfg.ConfirmKeyID); err != nil {
		fatal("init keys: %v", err)
	}

	a, err := app.Build(context.Background(), cfg)
	if err != nil {
		fatal("init: %v", err)
	}

	issuer := confirmlink.NewIssuer(keys.SigningKey(), "mensalidades", cfg.PublicBaseURL, cfg.ConfirmTTL)
	h := duesHandler.NewHandler(a.Ledger, duesHandler.Options{
		Status:         a.Persister,
		Attachments:    a.Files,
		Links:          issuer,
		Metrics:        promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	router := chi.NewRouter()
	maxBodySize := cfg.MaxUploadBytes + 2_100_000
	router.Use(middleware.RequestSize(maxBodySize))
	router.Use(middleware.Recoverer)
	router.Mount("/", h.Router())

	addr := ":" + cfg.Port
	server := &http.Server{Addr: addr, Handler: withCORS(router)}

	go func() {
		logger.Info("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen: %v", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown: %v", err)
	}
	if err := a.Close(ctx); err != nil {
		logger.Error("final save: %v", err)
	}
	logger.Info("server stopped")
}
