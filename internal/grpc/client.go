package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Dial opens a plaintext client connection speaking this service's JSON
// codec.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
}

// Check invokes the health endpoint over an open connection.
func Check(ctx context.Context, conn *grpc.ClientConn) (*HealthCheckResponse, error) {
	resp := new(HealthCheckResponse)
	if err := conn.Invoke(ctx, MethodPath("Check"), &HealthCheckRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Invoke calls one of the service's unary methods over an open
// connection, decoding into resp.
func Invoke(ctx context.Context, conn *grpc.ClientConn, method string, req, resp interface{}) error {
	return conn.Invoke(ctx, MethodPath(method), req, resp)
}
