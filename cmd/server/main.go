package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"credential-session-service/backend/internal/app"
	"credential-session-service/backend/internal/config"
	"credential-session-service/backend/internal/health"
	"credential-session-service/backend/internal/server"
	"credential-session-service/backend/internal/server/interceptors"
	telemetryotel "credential-session-service/backend/internal/telemetry/otel"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.Logger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Insecure:    cfg.OTLPInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	conn, dialect, err := app.OpenDB(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	auth, err := app.AuthService(cfg, conn, dialect, logger, telemetryotel.NewEventEmitter(providers.LoggerProvider))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	checker := health.NewChecker(conn, logger)
	go checker.Run(ctx, 15*time.Second)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.AuthUnary(auth, server.PublicMethods(), logger),
			interceptors.AuditUnary(logger, server.HealthMethods()),
		),
	)
	server.RegisterServices(s, server.Deps{Health: checker.Server(), Auth: auth})

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr, "driver", dialect.String())
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down gRPC server")
	s.GracefulStop()
	logger.Info("gRPC server stopped")
}
