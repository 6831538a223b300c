package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// interceptedConn runs unary interceptors in front of another connection
type interceptedConn struct {
	cc    grpc.ClientConnInterface
	chain []grpc.UnaryClientInterceptor
}

// Intercept returns cc with the given unary interceptors applied to every
// Invoke, outermost first. Streams pass through untouched.
func Intercept(cc grpc.ClientConnInterface, interceptors ...grpc.UnaryClientInterceptor) grpc.ClientConnInterface {
	if len(interceptors) == 0 {
		return cc
	}
	return &interceptedConn{cc: cc, chain: interceptors}
}

func (i *interceptedConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	var conn *grpc.ClientConn
	if c, ok := i.cc.(*grpc.ClientConn); ok {
		conn = c
	} else if ch, ok := i.cc.(*Channel); ok {
		conn = ch.Conn()
	}

	invoker := func(ctx context.Context, method string, req, reply interface{}, _ *grpc.ClientConn, opts ...grpc.CallOption) error {
		return i.cc.Invoke(ctx, method, req, reply, opts...)
	}
	for n := len(i.chain) - 1; n >= 0; n-- {
		next, interceptor := invoker, i.chain[n]
		invoker = func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
			return interceptor(ctx, method, req, reply, cc, next, opts...)
		}
	}
	return invoker(ctx, method, args, reply, conn, opts...)
}

func (i *interceptedConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return i.cc.NewStream(ctx, desc, method, opts...)
}
