package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/vin-dashboard/internal/model"
	"github.com/sells-group/vin-dashboard/internal/monitoring"
	"github.com/sells-group/vin-dashboard/internal/refresh"
	"github.com/sells-group/vin-dashboard/internal/store"
)

var servePort int

// refresher runs one refresh.
type refresher interface {
	Run(ctx context.Context, trigger model.Trigger) (*refresh.Outcome, error)
}

// runReader reads run history.
type runReader interface {
	LatestRun(ctx context.Context) (*model.Run, error)
}

type routerConfig struct {
	AllowedOrigins []string
	RefreshRPS     float64
	RefreshBurst   int
	RefreshTimeout time.Duration
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the refresh trigger endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initRefresh(ctx, "", "")
		if err != nil {
			return err
		}
		defer env.Close()

		var runs runReader
		if env.Store != nil {
			runs = env.Store
			if cfg.Monitoring.WebhookURL != "" {
				checker := monitoring.NewChecker(
					monitoring.NewCollector(env.Store),
					monitoring.NewAlerter(cfg.Monitoring),
					cfg.Monitoring,
				)
				go checker.Run(ctx)
			}
		}
		handler := newRouter(env.Runner, runs, routerConfig{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RefreshRPS:     cfg.Server.RefreshRPS,
			RefreshBurst:   cfg.Server.RefreshBurst,
			RefreshTimeout: 5 * time.Minute,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the HTTP surface. Concurrent refresh requests share one
// run; requests beyond the rate limit get 429.
func newRouter(r refresher, runs runReader, rc routerConfig) http.Handler {
	limit := rate.Inf
	if rc.RefreshRPS > 0 {
		limit = rate.Limit(rc.RefreshRPS)
	}
	burst := rc.RefreshBurst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(limit, burst)
	var group singleflight.Group

	timeout := rc.RefreshTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	if len(rc.AllowedOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rc.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	refreshHandler := func(w http.ResponseWriter, req *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many refresh requests", http.StatusTooManyRequests)
			return
		}

		// Joined callers must not lose the shared run when the first caller disconnects.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), timeout)
		defer cancel()

		v, err, shared := group.Do("refresh", func() (any, error) {
			return r.Run(ctx, model.TriggerHTTP)
		})
		if err != nil {
			http.Error(w, "Error refreshing dashboard: "+err.Error(), http.StatusInternalServerError)
			return
		}
		out := v.(*refresh.Outcome)
		zap.L().Debug("refresh served", zap.String("run_id", out.RunID), zap.Bool("shared", shared))

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, out.Message())
	}
	router.Get("/refresh", refreshHandler)
	router.Post("/refresh", refreshHandler)

	router.Get("/runs/latest", func(w http.ResponseWriter, req *http.Request) {
		if runs == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run history is disabled"})
			return
		}
		run, err := runs.LatestRun(req.Context())
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no runs recorded"})
			return
		}
		if err != nil {
			zap.L().Error("latest run lookup failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "run history unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
