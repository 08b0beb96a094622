package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketInvalid(t *testing.T) {
	now := time.Now()

	_, err := NewTokenBucket(1, 2, 1, now)
	assert.Error(t, err)

	_, err = NewTokenBucket(1, 1, -1, now)
	assert.Error(t, err)
}

func TestTokenBucketAllow(t *testing.T) {
	now := time.Unix(1000, 0)

	bucket, err := NewTokenBucket(2, 2, 1, now)
	require.NoError(t, err)

	assert.True(t, bucket.Allow(now))
	assert.True(t, bucket.Allow(now))
	assert.False(t, bucket.Allow(now))

	// Half a token is not enough
	now = now.Add(500 * time.Millisecond)
	assert.False(t, bucket.Allow(now))

	// The residue adds up to a whole token
	now = now.Add(500 * time.Millisecond)
	assert.True(t, bucket.Allow(now))

	// A long pause fills the bucket but no further
	now = now.Add(time.Hour)
	assert.True(t, bucket.Allow(now))
	assert.EqualValues(t, 1, bucket.Tokens())
}

func TestTokenBucketUpdateParams(t *testing.T) {
	now := time.Unix(1000, 0)

	bucket, err := NewTokenBucket(5, 5, 1, now)
	require.NoError(t, err)

	bucket.UpdateParams(2, 10)
	assert.EqualValues(t, 2, bucket.Tokens())

	assert.True(t, bucket.Allow(now))
	assert.True(t, bucket.Allow(now))
	assert.False(t, bucket.Allow(now))

	now = now.Add(100 * time.Millisecond)
	assert.True(t, bucket.Allow(now))
}
