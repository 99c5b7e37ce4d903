package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin wrapper over a grpc.ClientConn dialed against a
// corenode's submission socket, calling Submit/Query through the hand
// authored serviceDesc rather than generated stubs.
type Client struct {
	cc *grpc.ClientConn
}

// Dial connects to a corenode's rpc_addr.
func Dial(addr string) (*Client, error) {
	cc, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc}, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error { return c.cc.Close() }

// Submit sends req and returns the receipt (or engine-level rejection)
// the remote node's Submit handler produced.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.cc.Invoke(ctx, "/corestate.StateEngine/Submit", &req, &resp); err != nil {
		return SubmitResponse{}, err
	}
	return resp, nil
}

// Query sends req and returns the remote node's answer.
func (c *Client) Query(ctx context.Context, req QueryRequest) (QueryResponse, error) {
	var resp QueryResponse
	if err := c.cc.Invoke(ctx, "/corestate.StateEngine/Query", &req, &resp); err != nil {
		return QueryResponse{}, err
	}
	return resp, nil
}
