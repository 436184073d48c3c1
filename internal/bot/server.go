package bot

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/charadev96/repguard/internal/bot/handler/telegram"
	"github.com/charadev96/repguard/internal/shared/log"
)

// StoreService is the health service name that tracks the document store.
const StoreService = "repguard.store"

const defaultWatchInterval = 5 * time.Second

type AdminConfig struct {
	Addr   string
	Logger *zerolog.Logger
}

type MetricsConfig struct {
	Addr   string
	Logger *zerolog.Logger
}

// StoreHealth reports a sticky store failure, see
// repository.DocumentTransactionRunner.Err.
type StoreHealth interface {
	Err() error
}

type Server struct {
	Admin   AdminConfig
	Metrics MetricsConfig

	Bot           *telegram.Bot
	Store         StoreHealth
	WatchInterval time.Duration
	Logger        *zerolog.Logger

	once   sync.Once
	health *health.Server
}

func (s *Server) healthServer() *health.Server {
	s.once.Do(func() {
		s.health = health.NewServer()
		s.health.SetServingStatus(StoreService, healthpb.HealthCheckResponse_SERVING)
	})
	return s.health
}

// Run serves the bot and every configured listener until ctx is done or
// one of them fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.Bot != nil {
		g.Go(func() error { return s.Bot.Run(ctx) })
	}
	if s.Admin.Addr != "" {
		g.Go(func() error { return s.ServeAdmin(ctx) })
	}
	if s.Metrics.Addr != "" {
		g.Go(func() error { return s.ServeMetrics(ctx) })
	}
	if s.Store != nil {
		g.Go(func() error { return s.WatchStore(ctx) })
	}
	return g.Wait()
}

func (s *Server) ServeAdmin(ctx context.Context) error {
	logger := log.OrNop(s.Admin.Logger)
	ln, err := net.Listen("tcp", s.Admin.Addr)
	if err != nil {
		return fmt.Errorf("failed to init admin server: %w", err)
	}
	logger.Info().
		Str("address", s.Admin.Addr).
		Msg("started server")

	inst := grpc.NewServer()
	healthpb.RegisterHealthServer(inst, s.healthServer())
	reflection.Register(inst)

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		s.healthServer().Shutdown()
		inst.GracefulStop()
	}()

	return inst.Serve(ln)
}

func (s *Server) ServeMetrics(ctx context.Context) error {
	logger := log.OrNop(s.Metrics.Logger)
	ln, err := net.Listen("tcp", s.Metrics.Addr)
	if err != nil {
		return fmt.Errorf("failed to init metrics server: %w", err)
	}
	logger.Info().
		Str("address", s.Metrics.Addr).
		Msg("started server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WatchStore flips the store health to NOT_SERVING once the store reports
// an error. The status never goes back.
func (s *Server) WatchStore(ctx context.Context) error {
	interval := s.WatchInterval
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	hs := s.healthServer()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := s.Store.Err()
			if err == nil {
				continue
			}
			log.OrNop(s.Logger).Error().
				Err(err).
				Msg("store unhealthy, reporting NOT_SERVING")
			hs.SetServingStatus(StoreService, healthpb.HealthCheckResponse_NOT_SERVING)
			hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
			return nil
		}
	}
}
