package authcore

import "context"

type contextKey int

const (
	ctxKeyOriginAddress contextKey = iota
	ctxKeyUserAgent
)

// WithOriginAddress attaches the caller's network origin to the context.
// The throttle keys on it and security events record it.
func WithOriginAddress(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ctxKeyOriginAddress, addr)
}

// WithUserAgent attaches the caller's user agent string to the context
// for inclusion in security events.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

func originAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyOriginAddress).(string); ok {
		return v
	}
	return ""
}

func userAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
