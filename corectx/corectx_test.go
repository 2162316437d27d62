package corectx

import (
	"context"
	"testing"
)

func TestReqIDRoundTrip(t *testing.T) {
	ctx := WithReqID(context.Background(), ReqID("abc-123"))
	if got := ReqIDFromContext(ctx); got != "abc-123" {
		t.Errorf("expected abc-123, got %s", got)
	}
}

func TestReqIDFromContextMintsWhenAbsent(t *testing.T) {
	id := ReqIDFromContext(context.Background())
	if id == "" {
		t.Error("expected a minted reqId, got empty string")
	}
}

func TestNetworkingEnabledByDefault(t *testing.T) {
	if !NetworkingEnabled(context.Background()) {
		t.Error("networking should be enabled by default")
	}
	if RequireNetworking(context.Background()) != nil {
		t.Error("RequireNetworking should pass when networking is enabled")
	}
}

func TestNetworkingDisabled(t *testing.T) {
	ctx := WithNetworkingDisabled(context.Background())
	if NetworkingEnabled(ctx) {
		t.Error("networking should be disabled after WithNetworkingDisabled")
	}
	if err := RequireNetworking(ctx); err != ErrNetworkingDisabled {
		t.Errorf("expected ErrNetworkingDisabled, got %v", err)
	}
}
