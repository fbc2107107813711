package worker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/httpx"
)

// HealthResponse is served by /readyz.
type HealthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version,omitempty"`
	Uptime   string `json:"uptime"`
	Broker   string `json:"broker"`
	Sessions int    `json:"sessions"`
}

// HealthHandler serves /livez and /readyz. Readiness follows the broker
// connection: a worker that is reconnecting reports 503.
func (w *Worker) HealthHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /livez", func(rw http.ResponseWriter, _ *http.Request) {
		httpx.NoCache(rw)
		httpx.WriteJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /readyz", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{
			Status:   "ok",
			Service:  w.opts.Name,
			Version:  w.opts.Version,
			Uptime:   time.Since(w.startTime).Round(time.Second).String(),
			Broker:   w.broker.State().String(),
			Sessions: w.Sessions(),
		}

		code := http.StatusOK
		if w.broker.State() != broker.Connected || w.broker.Health(ctx) != nil {
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
		}

		httpx.NoCache(rw)
		httpx.WriteJSON(rw, code, resp)
	})

	return mux
}

func (w *Worker) startHealthServer() {
	w.health = &http.Server{
		Addr:              w.opts.HealthAddr,
		Handler:           w.HealthHandler(),
		ReadHeaderTimeout: 3 * time.Second,
	}

	go func() {
		if err := w.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("health server failed", "error", err)
		}
	}()
	w.log.Info("health server listening", "addr", w.opts.HealthAddr)
}
