// ABOUTME: LLMService implementation backed by the scatter-gather orchestrator
// ABOUTME: Maps orchestrator errors to gRPC status codes and logs every call

package rpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/2389/fanout-gateway/internal/auth"
	"github.com/2389/fanout-gateway/internal/scatter"
)

// PromptHandler runs one scatter-gather request.
type PromptHandler interface {
	Handle(ctx context.Context, p scatter.Prompt) (*scatter.Response, error)
}

// Server implements LLMServiceServer.
type Server struct {
	handler PromptHandler
	logger  *slog.Logger
}

// NewServer creates a Server that delegates to handler.
func NewServer(handler PromptHandler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: handler, logger: logger.With("component", "rpc")}
}

// ExecutePrompt fans the prompt out and returns the winning answer.
func (s *Server) ExecutePrompt(ctx context.Context, req *PromptRequest) (*PromptResponse, error) {
	resp, err := s.handler.Handle(ctx, scatter.Prompt{
		Text:      req.GetUserPrompt(),
		ModelHint: req.GetModel(),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.logger.Debug("prompt executed",
		"id", resp.RecordID,
		"subject", auth.SubjectFromContext(ctx),
		"winner", resp.Winner,
	)

	return &PromptResponse{
		Text:      resp.Text,
		Cost:      float32(resp.Cost),
		Winner:    resp.Winner,
		Succeeded: int32(resp.Succeeded),
	}, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, scatter.ErrEmptyPrompt):
		return status.Error(codes.InvalidArgument, "user_prompt is required")
	case errors.Is(err, scatter.ErrNoAdapters):
		return status.Error(codes.FailedPrecondition, "no chat backends are configured")
	case errors.Is(err, scatter.ErrAtCapacity):
		return status.Error(codes.Unavailable, "gateway at capacity, retry later")
	case errors.Is(err, scatter.ErrDraining):
		return status.Error(codes.Unavailable, "gateway is shutting down")
	case errors.Is(err, scatter.ErrPersistence):
		return status.Error(codes.Internal, "request completed but could not be recorded")
	default:
		return status.Errorf(codes.Unknown, "executing prompt: %v", err)
	}
}

// LoggingUnaryInterceptor logs every unary call with its status code and latency.
func LoggingUnaryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	logger = logger.With("component", "rpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.InvalidArgument, codes.Unauthenticated, codes.FailedPrecondition, codes.Unavailable:
			level = slog.LevelWarn
		default:
			level = slog.LevelError
		}

		attrs := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if err != nil {
			attrs = append(attrs, "error", err)
		}
		logger.Log(ctx, level, "rpc call", attrs...)
		return resp, err
	}
}

var _ LLMServiceServer = (*Server)(nil)
