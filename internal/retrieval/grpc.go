package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

// SearchMethod is the full gRPC method name of the remote search endpoint.
const SearchMethod = "/retrieval.v1.RetrievalService/Search"

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
	errMalformedResponse        = errors.New("malformed search response")
)

// GRPCConfig holds configuration for the remote retrieval client.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	RequestTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		RequestTimeout:   3 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCProvider queries a remote retrieval service. Requests and responses are
// google.protobuf.Struct messages:
//
//	request:  {"query": string, "k": number}
//	response: {"snippets": [{"text": string, "source": string, "score": number}]}
type GRPCProvider struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  *slog.Logger
}

// NewGRPCProvider dials the service and waits until the connection is ready.
func NewGRPCProvider(cfg GRPCConfig, logger *slog.Logger, opts ...grpc.DialOption) (*GRPCProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, opts...)

	conn, err := grpc.NewClient(cfg.Address, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("retrieval service at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to retrieval service", "address", cfg.Address)
	return &GRPCProvider{conn: conn, timeout: cfg.RequestTimeout, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (p *GRPCProvider) Close() {
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			p.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Search calls the remote service.
func (p *GRPCProvider) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	req, err := structpb.NewStruct(map[string]any{"query": query, "k": k})
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	resp := &structpb.Struct{}
	if err := p.conn.Invoke(ctx, SearchMethod, req, resp); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	return decodeSnippets(resp, k)
}

func decodeSnippets(resp *structpb.Struct, k int) ([]Snippet, error) {
	field, ok := resp.GetFields()["snippets"]
	if !ok {
		return nil, nil
	}
	list := field.GetListValue()
	if list == nil {
		return nil, errMalformedResponse
	}

	out := make([]Snippet, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		s := v.GetStructValue()
		if s == nil {
			return nil, errMalformedResponse
		}
		f := s.GetFields()
		out = append(out, Snippet{
			Text:   f["text"].GetStringValue(),
			Source: f["source"].GetStringValue(),
			Score:  f["score"].GetNumberValue(),
		})
		if k > 0 && len(out) == k {
			break
		}
	}
	return out, nil
}
