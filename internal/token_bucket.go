package internal

import (
	"fmt"
	"math"
	"time"
)

// TokenBucket throttles run requests of a single watcher. It is not safe for
// concurrent use; every connection owns its own bucket.
type TokenBucket struct {
	// Max tokens to hold
	capacity uint

	// Current number of tokens in bucket
	tokens uint

	// How many tokens are generated per second
	tokensPerSec float64

	// Leftover fractional tokens from the last refill
	residue float64

	lastRefill time.Time
}

func NewTokenBucket(
	capacity uint,
	initialTokens uint,
	tokensPerSec float64,
	now time.Time,
) (*TokenBucket, error) {
	if initialTokens > capacity {
		return nil, fmt.Errorf("initial tokens %d exceed capacity %d",
			initialTokens, capacity)
	}

	if tokensPerSec < 0 {
		return nil, fmt.Errorf("tokens per second cannot be negative: %v",
			tokensPerSec)
	}

	return &TokenBucket{
		capacity:     capacity,
		tokens:       initialTokens,
		tokensPerSec: tokensPerSec,
		lastRefill:   now,
	}, nil
}

func (bucket *TokenBucket) UpdateParams(capacity uint, tokensPerSec float64) {
	bucket.capacity = capacity
	bucket.tokensPerSec = tokensPerSec

	if bucket.tokens > capacity {
		bucket.tokens = capacity
	}

	// A full bucket keeps no residue
	if bucket.tokens >= capacity {
		bucket.residue = 0.0
	}
}

func (bucket *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(bucket.lastRefill)
	if elapsed <= 0 {
		return
	}

	bucket.lastRefill = now

	whole, residue := math.Modf(
		elapsed.Seconds()*bucket.tokensPerSec + bucket.residue)

	newTokens := uint(whole)
	maxNewTokens := bucket.capacity - bucket.tokens

	// Clamp before adding so a long idle period cannot overflow
	if newTokens >= maxNewTokens {
		bucket.tokens = bucket.capacity
		bucket.residue = 0
		return
	}

	bucket.tokens += newTokens
	bucket.residue = residue
}

// Allow refills the bucket up to now and takes one token if there is one.
func (bucket *TokenBucket) Allow(now time.Time) bool {
	bucket.refill(now)

	if bucket.tokens == 0 {
		return false
	}

	bucket.tokens--

	return true
}

func (bucket *TokenBucket) Tokens() uint {
	return bucket.tokens
}
