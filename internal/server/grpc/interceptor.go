package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/lostfound/internal/common"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicPrefix covers the methods reachable without a token.
const publicPrefix = "/grpc.health.v1.Health/"

var authorizationKey = strings.ToLower(common.AuthorizationHeaderName)

func (s *GRPCServer) authenticate(ctx context.Context, method string) (context.Context, error) {
	if strings.HasPrefix(method, publicPrefix) {
		return ctx, nil
	}

	var header string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(authorizationKey); len(values) > 0 {
			header = values[0]
		}
	}
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	p, err := s.authenticator.Authenticate(ctx, header)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	return auth.WithPrincipal(ctx, p), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// principalStream carries the authenticated context into a stream handler.
type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *principalStream) Context() context.Context { return w.ctx }

func (s *GRPCServer) accessTokenStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &principalStream{ServerStream: ss, ctx: ctx})
}
