package http

import (
	"context"
	"net/http"
	"time"

	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/gatewaysdk"
	"github.com/swiftlogistics/platform/pkg/httpx"
)

// Pinger is anything the readiness probe can ping: the document store and
// the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe endpoint returning service health status and checks for critical dependencies
//	@Description	Includes uptime, version, and status of the database, session store and message broker
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	gatewaysdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	gatewaysdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	db Pinger,
	sessions Pinger,
	bk BrokerHealth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := &gatewaysdk.HealthChecks{
			Database: "ok",
			Sessions: "ok",
			Broker:   "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		degrade := func(field *string, value string) {
			*field = value
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := db.Ping(ctx); err != nil {
			degrade(&checks.Database, "error: "+err.Error())
		}

		if err := sessions.Ping(ctx); err != nil {
			degrade(&checks.Sessions, "error: "+err.Error())
		}

		// A lost broker only degrades the report; events are best effort so
		// the gateway keeps serving.
		if bk == nil || bk.State() != broker.Connected {
			state := "disconnected"
			if bk != nil {
				state = bk.State().String()
			}
			checks.Broker = state
			overallStatus = "degraded"
		} else if err := bk.Health(ctx); err != nil {
			checks.Broker = "error: " + err.Error()
			overallStatus = "degraded"
		}

		response := gatewaysdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		}
		httpx.WriteJSON(w, statusCode, response)
	}
}
