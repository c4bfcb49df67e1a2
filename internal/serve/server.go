package serve

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/cyclegrep/cyclegrep/internal/httpapi"
	"github.com/cyclegrep/cyclegrep/internal/rpcapi"
)

// Server coordinates the HTTP and gRPC front ends behind one shutdown
// signal, running both transports concurrently and stopping cleanly when
// either one fails.
type Server struct {
	cfg      Config
	executor *SearchExecutor
	log      zerolog.Logger
}

// New builds a Server bound to cfg, constructing its own SearchExecutor.
func New(cfg Config, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, executor: NewSearchExecutor(cfg, log), log: log}
}

// Run starts both the HTTP and gRPC listeners and blocks until ctx is
// canceled (SIGINT/SIGTERM) or either server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error { return s.runHTTP(groupCtx) })
	group.Go(func() error { return s.runGRPC(groupCtx) })

	return group.Wait()
}

func (s *Server) runHTTP(ctx context.Context) error {
	router := gin.New()
	router.Use(gin.Recovery())
	httpapi.NewHandlers(s.executor).Register(router)

	srv := &http.Server{Addr: s.cfg.HTTPAddr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.HTTPAddr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) runGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	grpcServer.RegisterService(rpcapi.NewServiceDesc(s.executor), nil)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.cfg.GRPCAddr).Msg("grpc server listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
