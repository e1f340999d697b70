package server

import (
	"TokenLedger/internal/observability"
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// httpDrainTimeout bounds how long shutdown waits for in-flight gateway
// requests.
const httpDrainTimeout = 5 * time.Second

// GRPCServer wraps the gRPC server and the HTTP gateway.
type GRPCServer struct {
	grpcServer    *grpc.Server
	httpServer    *http.Server
	health        *health.Server
	grpcAddr      string
	httpAddr      string
	service       *LedgerService
	healthChecker *observability.HealthChecker
	metrics       *observability.Metrics
	logger        zerolog.Logger
}

// ServerDeps holds the collaborators of GRPCServer. HealthChecker and
// Metrics may be nil.
type ServerDeps struct {
	Service       *LedgerService
	HealthChecker *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        zerolog.Logger
}

// NewGRPCServer creates a gRPC server with the ledger service, health and
// reflection registered.
func NewGRPCServer(grpcAddr, httpAddr string, deps *ServerDeps) *GRPCServer {
	s := &GRPCServer{
		grpcAddr:      grpcAddr,
		httpAddr:      httpAddr,
		service:       deps.Service,
		healthChecker: deps.HealthChecker,
		metrics:       deps.Metrics,
		logger:        deps.Logger,
	}

	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.unaryMetrics))
	s.grpcServer.RegisterService(&ServiceDesc, deps.Service)

	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	if s.healthChecker != nil {
		s.setServing(s.healthChecker.IsReady())
		s.healthChecker.OnChange(s.setServing)
	} else {
		s.setServing(true)
	}

	// grpcurl / grpcui
	reflection.Register(s.grpcServer)

	return s
}

// Server exposes the underlying grpc.Server.
func (s *GRPCServer) Server() *grpc.Server {
	return s.grpcServer
}

func (s *GRPCServer) setServing(ready bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// StartGRPC starts the gRPC server (blocking).
func (s *GRPCServer) StartGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// Serve runs the gRPC server on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.logger.Info().Msg("gRPC server shutting down")
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// StartHTTPGateway serves the HTTP/JSON gateway and health endpoints
// (blocking). It returns only after in-flight requests have drained, so
// the caller may close the engine's output channels afterwards.
func (s *GRPCServer) StartHTTPGateway(ctx context.Context) error {
	handler, err := s.HTTPHandler()
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.httpAddr, err)
	}
	return s.serveHTTP(ctx, lis, handler)
}

func (s *GRPCServer) serveHTTP(ctx context.Context, lis net.Listener, handler http.Handler) error {
	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		s.logger.Info().Msg("HTTP gateway shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpDrainTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("HTTP gateway shutdown")
		}
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("HTTP gateway listening")
	if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	// Serve returns as soon as Shutdown starts; handlers may still be
	// running until Shutdown itself returns.
	<-shutdownDone
	return nil
}

// HTTPHandler builds the gateway mux with /healthz and /readyz in front.
func (s *GRPCServer) HTTPHandler() (http.Handler, error) {
	gw, err := NewGateway(s.service, s.metrics)
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	mux := http.NewServeMux()
	if s.healthChecker != nil {
		mux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	} else {
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"status":"ok"}`)
		})
	}
	mux.Handle("/", gw)
	return mux, nil
}

func (s *GRPCServer) unaryMetrics(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	observe(s.metrics, "grpc:"+path.Base(info.FullMethod), start, err)
	if err != nil && status.Code(err) == codes.Internal {
		s.logger.Error().Err(err).Str("method", info.FullMethod).Msg("request failed")
	}
	return resp, err
}

func observe(m *observability.Metrics, endpoint string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		code := status.Code(err).String()
		m.QueryRequests.WithLabelValues(endpoint, "error").Inc()
		m.QueryErrors.WithLabelValues(endpoint, code).Inc()
		return
	}
	m.QueryRequests.WithLabelValues(endpoint, "ok").Inc()
}
