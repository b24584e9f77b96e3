package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/rclone/ftpfetch/fs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketNil(t *testing.T) {
	var tb *TokenBucket
	assert.Equal(t, fs.SizeSuffix(0), tb.Limit())
	assert.Equal(t, 4096, tb.ChunkSize(4096))
	assert.NoError(t, tb.WaitN(context.Background(), 1<<20))
	tb.StepUp()
	tb.StepDown()
	tb.SetLimit(10)
}

func TestTokenBucketUnlimited(t *testing.T) {
	tb := NewTokenBucket(0, 0)
	assert.Equal(t, fs.SizeSuffix(0), tb.Limit())
	assert.Equal(t, DefaultRateStep, tb.Step())
	tb.StepUp()
	assert.Equal(t, fs.SizeSuffix(0), tb.Limit())
	assert.Equal(t, 4096, tb.ChunkSize(4096))
}

func TestTokenBucketStep(t *testing.T) {
	tb := NewTokenBucket(2048, 1024)
	assert.Equal(t, 2048, tb.ChunkSize(4096))
	assert.Equal(t, 1000, tb.ChunkSize(1000))

	tb.StepUp()
	assert.Equal(t, fs.SizeSuffix(3072), tb.Limit())

	tb.StepDown()
	tb.StepDown()
	assert.Equal(t, fs.SizeSuffix(1024), tb.Limit())

	// won't go to zero
	tb.StepDown()
	assert.Equal(t, fs.SizeSuffix(1024), tb.Limit())

	tb.SetLimit(0)
	assert.Equal(t, fs.SizeSuffix(0), tb.Limit())
	tb.SetLimit(-1)
	assert.Equal(t, fs.SizeSuffix(0), tb.Limit())
}

func TestTokenBucketPacing(t *testing.T) {
	ctx := context.Background()
	tb := NewTokenBucket(10000, 0)

	// first second's worth goes straight away
	start := time.Now()
	require.NoError(t, tb.WaitN(ctx, 10000))
	assert.Less(t, time.Since(start), 200*time.Millisecond)

	// the next half second's worth has to wait
	start = time.Now()
	require.NoError(t, tb.WaitN(ctx, 5000))
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestTokenBucketCancel(t *testing.T) {
	tb := NewTokenBucket(100, 0)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, tb.WaitN(ctx, 100))
	cancel()
	assert.Error(t, tb.WaitN(ctx, 100))
}
