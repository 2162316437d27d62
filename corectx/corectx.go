// Package corectx carries the two pieces of ambient state every
// collaborator call threads through explicitly: a correlation token for
// cancellation/tracing, and whether outbound networking is permitted at
// all (spec §5, §9 "replace global mutable _reqId with an explicit
// per-call context parameter").
package corectx

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ReqID is the correlation token threaded through every collaborator
// call so an upstream cancel can be traced back to the request that
// issued it.
type ReqID string

// NewReqID mints a fresh correlation token.
func NewReqID() ReqID {
	return ReqID(uuid.NewString())
}

type reqIDKey struct{}
type networkingKey struct{}

// WithReqID attaches a correlation token to ctx.
func WithReqID(ctx context.Context, id ReqID) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

// ReqIDFromContext retrieves the correlation token, minting one on the
// spot if the caller never attached one — every outbound call must carry
// some token, even if nothing upstream asked for tracing.
func ReqIDFromContext(ctx context.Context) ReqID {
	if id, ok := ctx.Value(reqIDKey{}).(ReqID); ok {
		return id
	}
	return NewReqID()
}

// WithNetworkingDisabled marks ctx so collaborator calls that would
// suspend on the network refuse outright instead of attempting one
// (spec §7 NetworkingDisabled).
func WithNetworkingDisabled(ctx context.Context) context.Context {
	return context.WithValue(ctx, networkingKey{}, true)
}

// NetworkingEnabled reports whether ctx permits outbound calls. Networking
// is enabled unless explicitly disabled.
func NetworkingEnabled(ctx context.Context) bool {
	disabled, _ := ctx.Value(networkingKey{}).(bool)
	return !disabled
}

// ErrNetworkingDisabled is returned by any collaborator call site that
// would otherwise suspend on the network while NetworkingEnabled is
// false (spec §7).
var ErrNetworkingDisabled = errors.New("corectx: networking disabled for this call")

// RequireNetworking returns ErrNetworkingDisabled if ctx forbids
// outbound calls, nil otherwise. Callers use this as a guard right
// before any suspension point.
func RequireNetworking(ctx context.Context) error {
	if !NetworkingEnabled(ctx) {
		return ErrNetworkingDisabled
	}
	return nil
}
