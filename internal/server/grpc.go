// ABOUTME: gRPC health service reporting one status per namespace
// ABOUTME: A namespace is SERVING while its document can be opened

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/2389/statekeeper/internal/prefs"
)

// HealthServiceName returns the health service name for namespace.
func HealthServiceName(namespace string) string {
	return "statekeeper." + namespace
}

func registerHealth(server *grpc.Server, hs *health.Server) {
	healthpb.RegisterHealthServer(server, hs)
	for _, ns := range prefs.Namespaces() {
		hs.SetServingStatus(HealthServiceName(ns), healthpb.HealthCheckResponse_NOT_SERVING)
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// refreshHealth opens each namespace and updates the health statuses.
// The overall status is SERVING only if every namespace is.
func (s *Server) refreshHealth(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, ns := range prefs.Namespaces() {
		status := healthpb.HealthCheckResponse_SERVING
		if _, err := s.store.Open(ctx, ns); err != nil {
			s.logger.Warn("namespace unavailable", "namespace", ns, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.health.SetServingStatus(HealthServiceName(ns), status)
	}
	s.health.SetServingStatus("", overall)
}
