// Package rpc is the gateway's gRPC front-end.
//
// It exposes gateway.LLMService (see proto/gateway.proto) with a single
// unary method, ExecutePrompt, that hands the prompt to the scatter-gather
// orchestrator and returns the winner's text, the cost estimate, the winner's
// name, and how many backends succeeded.
//
// # Wire Format
//
// The message types are written by hand against protowire rather than
// generated. Codec carries them, and must be forced on both ends:
//
//	srv := grpc.NewServer(rpc.ServerCodecOption())
//	rpc.RegisterLLMServiceServer(srv, rpc.NewServer(orch, logger))
//
//	client := rpc.NewLLMServiceClient(conn) // forces the codec per call
//
// Codec falls back to protobuf reflection for generated messages, so stock
// services like grpc.health.v1 can share the server.
//
// # Errors
//
//	empty prompt           -> InvalidArgument
//	no chat backends       -> FailedPrecondition
//	in-flight limit        -> Unavailable
//	log append failed      -> Internal
//	anything else          -> Unknown
//
// Backend failures are never RPC errors. A request where every backend failed
// succeeds with winner "" and succeeded 0.
package rpc
