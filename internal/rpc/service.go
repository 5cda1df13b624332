// ABOUTME: Service descriptor, registration, and client stub for gateway.LLMService
// ABOUTME: Hand-maintained equivalent of protoc-gen-go-grpc output for proto/gateway.proto

package rpc

import (
	"context"

	"google.golang.org/grpc"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "gateway.LLMService"
	// ExecutePromptMethod is the full method name of ExecutePrompt.
	ExecutePromptMethod = "/" + ServiceName + "/ExecutePrompt"
)

// ServerCodecOption forces Codec on a server.
func ServerCodecOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

// CodecCallOption forces Codec on a client call.
func CodecCallOption() grpc.CallOption {
	return grpc.ForceCodec(Codec{})
}

// LLMServiceServer is the server API for gateway.LLMService.
type LLMServiceServer interface {
	ExecutePrompt(context.Context, *PromptRequest) (*PromptResponse, error)
}

// LLMService_ServiceDesc is the grpc.ServiceDesc for gateway.LLMService.
var LLMService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LLMServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ExecutePrompt",
			Handler:    executePromptHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/gateway.proto",
}

// RegisterLLMServiceServer registers srv on s. The server must be created with
// ServerCodecOption.
func RegisterLLMServiceServer(s grpc.ServiceRegistrar, srv LLMServiceServer) {
	s.RegisterService(&LLMService_ServiceDesc, srv)
}

func executePromptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PromptRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LLMServiceServer).ExecutePrompt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ExecutePromptMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LLMServiceServer).ExecutePrompt(ctx, req.(*PromptRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// LLMServiceClient is the client API for gateway.LLMService.
type LLMServiceClient interface {
	ExecutePrompt(ctx context.Context, in *PromptRequest, opts ...grpc.CallOption) (*PromptResponse, error)
}

type llmServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewLLMServiceClient returns a client that forces Codec on every call.
func NewLLMServiceClient(cc grpc.ClientConnInterface) LLMServiceClient {
	return &llmServiceClient{cc: cc}
}

func (c *llmServiceClient) ExecutePrompt(ctx context.Context, in *PromptRequest, opts ...grpc.CallOption) (*PromptResponse, error) {
	out := new(PromptResponse)
	opts = append([]grpc.CallOption{CodecCallOption()}, opts...)
	if err := c.cc.Invoke(ctx, ExecutePromptMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
