package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intake/internal/config"
	"github.com/sells-group/lead-intake/internal/ingest"
	"github.com/sells-group/lead-intake/internal/monitoring"
	"github.com/sells-group/lead-intake/internal/resilience"
)

var servePort int

// shutdownGrace bounds how long serve waits for in-flight pipeline runs.
const shutdownGrace = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GroupMe webhook and leads API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		endpoint := ingest.NewEndpoint(env.Pipeline, env.Filter, env.Events)
		collector := monitoring.NewCollector(env.Store, env.Events, env.Breaker)

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildMux(env, endpoint, collector, cfg),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			if err := endpoint.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("pipeline runs still in flight at shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("webhook_path", cfg.Ingest.WebhookPath),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildMux wires the HTTP routes.
func buildMux(env *appEnv, endpoint *ingest.Endpoint, collector *monitoring.Collector, c *config.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: c.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post(c.Ingest.WebhookPath, endpoint.HandleWebhook)

	r.Get("/api/leads", func(w http.ResponseWriter, r *http.Request) {
		leads, err := env.Store.List(r.Context())
		if err != nil {
			zap.L().Error("list leads failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch leads"})
			return
		}
		writeJSON(w, http.StatusOK, leads)
	})

	r.Get("/api/webhook-health", func(w http.ResponseWriter, r *http.Request) {
		status, body := webhookHealth(r.Context(), env, collector)
		writeJSON(w, status, body)
	})

	r.Get("/debug/events", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]any{
			"capacity": env.Events.Cap(),
			"total":    env.Events.Total(),
			"events":   env.Events.Recent(limit),
		})
	})

	// Closes the AI breaker by hand once the provider is known to be back.
	r.Post("/debug/breaker/reset", func(w http.ResponseWriter, r *http.Request) {
		if env.Breaker == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no AI breaker configured"})
			return
		}
		env.Breaker.Reset()
		zap.L().Warn("ai circuit breaker reset by operator")
		writeJSON(w, http.StatusOK, map[string]string{"breaker": env.Breaker.State().String()})
	})

	r.Get("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		hours, _ := strconv.Atoi(r.URL.Query().Get("hours"))
		if hours <= 0 {
			hours = 24
		}
		snap, err := collector.Collect(r.Context(), hours)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, snap)
	})

	return r
}

// webhookHealth reports "error" when the store is unreachable and "warning"
// while the AI breaker is not closed.
func webhookHealth(ctx context.Context, env *appEnv, collector *monitoring.Collector) (int, map[string]any) {
	body := map[string]any{"status": "healthy"}

	if err := env.Store.Ping(ctx); err != nil {
		body["status"] = "error"
		body["message"] = "lead store unreachable"
		return http.StatusServiceUnavailable, body
	}

	snap, err := collector.Collect(ctx, 24)
	if err != nil {
		body["status"] = "error"
		body["message"] = "failed to collect metrics"
		return http.StatusServiceUnavailable, body
	}

	body["processing"] = map[string]any{
		"leadsLast24Hours":     snap.LeadsCreated,
		"totalLeadsInDatabase": snap.LeadsTotal,
		"messagesReceived":     snap.MessagesReceived,
		"messagesDropped":      snap.MessagesDropped,
		"failures":             snap.Failures,
		"fallbackRate":         snap.FallbackRate,
	}
	body["breaker"] = snap.BreakerState
	if env.Breaker == nil {
		return http.StatusOK, body
	}
	failures, _ := env.Breaker.Counters()
	body["breakerFailures"] = failures
	if env.Breaker.State() != resilience.CircuitClosed {
		body["status"] = "warning"
		body["message"] = "AI parser circuit is " + snap.BreakerState
	}
	return http.StatusOK, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
