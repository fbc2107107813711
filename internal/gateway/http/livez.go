package http

import (
	"context"
	"net/http"
	"time"

	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
)

// livePingTimeout keeps the session probe from stalling the liveness answer.
const livePingTimeout = 250 * time.Millisecond

// LivezHandler godoc
//
//	@Summary		Liveness Check Endpoint
//	@Description	Liveness probe returning uptime, version and the connection state of the broker and session store
//	@Description	Always answers 200 OK while the process runs; a lost broker or Redis is reported, not failed
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	gatewaysdk.HealthResponse	"status, uptime, version, connections"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string, sessions Pinger, bk BrokerHealth) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conns := &gatewaysdk.Connections{Broker: "disconnected", Sessions: "ok"}
		if bk != nil {
			conns.Broker = bk.State().String()
		}

		ctx, cancel := context.WithTimeout(r.Context(), livePingTimeout)
		defer cancel()
		if sessions == nil {
			conns.Sessions = "disconnected"
		} else if err := sessions.Ping(ctx); err != nil {
			conns.Sessions = "unreachable"
		}

		httpx.WriteJSON(w, http.StatusOK, gatewaysdk.HealthResponse{
			Status:      "ok",
			Uptime:      time.Since(startTime).String(),
			Version:     version,
			Connections: conns,
		})
	}
}
