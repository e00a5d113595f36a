package booking

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

var webRef = regexp.MustCompile(`^BKG-[0-9A-Z]+-[0-9A-Z]{8}$`)

func TestRefCodesConcurrentUnique(t *testing.T) {
	gen := NewRefCodes(func(context.Context, string) (bool, error) { return false, nil }, nil)

	const n = 10000
	codes := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code, err := gen.Next(context.Background(), PrefixWeb, 8)
			if err == nil {
				codes[i] = code
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, n)
	for _, c := range codes {
		require.Regexp(t, webRef, c)
		seen[c] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestRefCodesFallbackAfterCollisions(t *testing.T) {
	var mu sync.Mutex
	var calls int
	exists := func(_ context.Context, code string) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return calls <= maxRefAttempts, nil
	}
	gen := NewRefCodes(exists, func() time.Time { return time.UnixMilli(1767000000000) })

	code, err := gen.Next(context.Background(), PrefixWeb, 8)
	require.NoError(t, err)
	assert.Regexp(t, `^BKG-[0-9A-Z]+-[0-9A-Z]{8}-[0-9A-Z]{4}$`, code)
	assert.Equal(t, maxRefAttempts+1, calls)
}

func TestRefCodesExhausted(t *testing.T) {
	gen := NewRefCodes(func(context.Context, string) (bool, error) { return true, nil }, nil)
	_, err := gen.Next(context.Background(), PrefixWeb, 8)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestRefCodesWalkInShape(t *testing.T) {
	gen := NewRefCodes(func(context.Context, string) (bool, error) { return false, nil }, nil)
	code, err := gen.Next(context.Background(), PrefixWalkIn, 4)
	require.NoError(t, err)
	assert.Regexp(t, `^WLK-[0-9A-Z]+-[0-9A-Z]{4}$`, code)
}
