package middleware

import "context"

type requestInfoKey struct{}

type requestInfo struct {
	sessionID string
	actor     string
}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}
