package rpcapi

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/cyclegrep/cyclegrep/internal/engine"
	"github.com/cyclegrep/cyclegrep/internal/serve"
)

// SearchRequest is the wire request for the Search RPC.
type SearchRequest struct {
	Symbol        string          `json:"symbol"`
	Language      string          `json:"language"`
	Root          string          `json:"root"`
	TimeoutSecs   uint32          `json:"timeout_secs"`
	MaxMatches    uint32          `json:"max_matches"`
	Concurrency   uint32          `json:"concurrency"`
	EnableIndex   bool            `json:"enable_index"`
	EnableRga     bool            `json:"enable_rga"`
	IndexDir      string          `json:"index_dir"`
	CacheDir      string          `json:"cache_dir"`
	LogDir        string          `json:"log_dir"`
	ContextBefore uint32          `json:"context_before"`
	ContextAfter  uint32          `json:"context_after"`
	ToolFlags     map[string]bool `json:"tool_flags"`
}

// SearchResponse is the wire response for the Search RPC.
type SearchResponse struct {
	Summary *engine.SearchSummary `json:"summary"`
}

// HealthCheckRequest is the wire request for the Health RPC.
type HealthCheckRequest struct{}

// HealthCheckResponse is the wire response for the Health RPC.
type HealthCheckResponse struct {
	Status string `json:"status"`
}

// service implements the Search and Health RPCs against a shared executor.
type service struct {
	executor *serve.SearchExecutor
}

// NewServiceDesc builds the grpc.ServiceDesc for the cyclegrep search
// service, bound to executor. Register it on a *grpc.Server with
// RegisterService.
func NewServiceDesc(executor *serve.SearchExecutor) *grpc.ServiceDesc {
	svc := &service{executor: executor}
	return &grpc.ServiceDesc{
		ServiceName: "cyclegrep.v1.SearchService",
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Search", Handler: svc.searchHandler},
			{MethodName: "Health", Handler: svc.healthHandler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "cyclegrep.proto",
	}
}

func (s *service) searchHandler(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SearchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return s.search(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/cyclegrep.v1.SearchService/Search"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.search(ctx, req.(*SearchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func (s *service) healthHandler(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return s.health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: s, FullMethod: "/cyclegrep.v1.SearchService/Health"}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.health(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func (s *service) search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	summary, err := s.executor.Execute(ctx, mapRequest(req))
	if err != nil {
		if strings.Contains(err.Error(), "symbol is required") {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return &SearchResponse{Summary: summary}, nil
}

func (s *service) health(_ context.Context, _ *HealthCheckRequest) (*HealthCheckResponse, error) {
	return &HealthCheckResponse{Status: "ok"}, nil
}

func mapRequest(req *SearchRequest) serve.SearchInput {
	in := serve.SearchInput{
		Symbol:        req.Symbol,
		Language:      req.Language,
		Root:          req.Root,
		TimeoutS:      zeroable(req.TimeoutSecs),
		MaxMatches:    zeroable(req.MaxMatches),
		Concurrency:   zeroable(req.Concurrency),
		IndexDir:      req.IndexDir,
		CacheDir:      req.CacheDir,
		LogDir:        req.LogDir,
		ContextBefore: zeroable(req.ContextBefore),
		ContextAfter:  zeroable(req.ContextAfter),
		ToolFlags:     req.ToolFlags,
	}
	if req.EnableIndex {
		in.EnableIndex = &req.EnableIndex
	}
	if req.EnableRga {
		in.EnableRga = &req.EnableRga
	}
	return in
}

func zeroable(v uint32) int {
	return int(v)
}
