package health

import (
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the gRPC health service name reported for the relay
const ServiceName = "pinkchat.Relay"

// NewGRPCServer returns a gRPC server exposing the standard health service.
// Its serving status follows the checker.
func NewGRPCServer(c *Checker) *grpc.Server {
	srv := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	setServing(hs, c.IsSystemHealthy())
	c.OnChange(func(healthy bool) {
		setServing(hs, healthy)
	})
	return srv
}

func setServing(hs *grpchealth.Server, healthy bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
