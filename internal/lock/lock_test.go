package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoop(t *testing.T) {
	release, err := Noop{}.Obtain(context.Background(), "anything")
	require.NoError(t, err)
	release()
}

func TestConnect_EmptyAddrIsNoop(t *testing.T) {
	l, rdb, err := Connect(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, Noop{}, l)
}

func TestTenantKey(t *testing.T) {
	assert.Equal(t, "invoice:ACME", TenantKey("invoice", "ACME"))
	assert.Equal(t, "cash-session:ACME:2024-03-01", TenantKey("cash-session", "ACME", "2024-03-01"))
}

func TestObtainOptions_RetriesBeforeBusy(t *testing.T) {
	opts := obtainOptions()
	require.NotNil(t, opts.RetryStrategy)
	for i := 0; i < retryLimit; i++ {
		assert.Equal(t, 100*time.Millisecond, opts.RetryStrategy.NextBackoff(), "attempt %d", i+1)
	}
	assert.Zero(t, opts.RetryStrategy.NextBackoff())

	// Each call starts a new count.
	assert.Equal(t, retryBackoff, obtainOptions().RetryStrategy.NextBackoff())
}
