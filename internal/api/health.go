package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const (
	// ServiceName is reported by both health endpoints.
	ServiceName = "ProductDiscoveryService"

	healthCheckTimeout = 2 * time.Second
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status      string `json:"status"`
	ServiceName string `json:"serviceName"`
	Timestamp   string `json:"timestamp"`
	Database    string `json:"database"`
}

// HealthHandler answers the HTTP health probe. It returns 503 while the store
// does not answer a ping.
func HealthHandler(pinger Pinger, logger *logrus.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{
			Status:      "healthy",
			ServiceName: ServiceName,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
			Database:    "healthy",
		}
		code := http.StatusOK
		if err := pinger.Ping(ctx); err != nil {
			logger.WithError(err).Warn("Health check store ping failed")
			resp.Status, resp.Database = "unhealthy", "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.WithError(err).Error("Failed to encode health response")
		}
	}
}

// HealthReporter keeps the gRPC health status in step with the store.
type HealthReporter struct {
	pinger   Pinger
	server   *health.Server
	interval time.Duration
	log      *logrus.Logger
}

func NewHealthReporter(pinger Pinger, server *health.Server, interval time.Duration, logger *logrus.Logger) *HealthReporter {
	return &HealthReporter{pinger: pinger, server: server, interval: interval, log: logger}
}

// Check pings the store once and publishes the result for the overall server
// and for ServiceName.
func (hr *HealthReporter) Check(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := hr.pinger.Ping(ctx); err != nil {
		hr.log.WithError(err).Warn("gRPC health check store ping failed")
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	hr.server.SetServingStatus("", status)
	hr.server.SetServingStatus(ServiceName, status)
	return status
}

// Run checks immediately and then on every interval until ctx is done.
func (hr *HealthReporter) Run(ctx context.Context) {
	hr.Check(ctx)
	ticker := time.NewTicker(hr.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hr.Check(ctx)
		}
	}
}
