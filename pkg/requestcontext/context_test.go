package requestcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bastion/pkg/requestcontext"
)

func TestTenantID_DefaultsToSystemSentinel(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, requestcontext.DefaultTenantID, requestcontext.TenantID(ctx))

	ctx = requestcontext.WithTenantID(ctx, "")
	assert.Equal(t, requestcontext.DefaultTenantID, requestcontext.TenantID(ctx),
		"explicit empty tenant still maps to the sentinel")

	ctx = requestcontext.WithTenantID(ctx, "t-1")
	assert.Equal(t, "t-1", requestcontext.TenantID(ctx))
}

func TestIdentityAccessors_RoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, requestcontext.UserID(ctx))
	assert.Empty(t, requestcontext.UserName(ctx))
	assert.Empty(t, requestcontext.RequestID(ctx))

	ctx = requestcontext.WithUserID(ctx, "u-1")
	ctx = requestcontext.WithUserName(ctx, "alice")
	ctx = requestcontext.WithRequestID(ctx, "req-7")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "curl/8.0")

	assert.Equal(t, "u-1", requestcontext.UserID(ctx))
	assert.Equal(t, "alice", requestcontext.UserName(ctx))
	assert.Equal(t, "req-7", requestcontext.RequestID(ctx))
	assert.Equal(t, "10.0.0.1", requestcontext.ClientIP(ctx))
	assert.Equal(t, "curl/8.0", requestcontext.UserAgent(ctx))
}

func TestNow_FallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := requestcontext.Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), fixed)
	assert.Equal(t, fixed, requestcontext.Now(ctx))
}
