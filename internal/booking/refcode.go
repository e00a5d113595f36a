package booking

import (
	"context"
	"crypto/rand"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/hotel-reservation/internal/apperr"
)

// Reference code prefixes.
const (
	PrefixWeb    = "BKG"
	PrefixWalkIn = "WLK"
)

const (
	maxRefAttempts = 10
	base36         = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// RefExists reports whether a reference code is already taken.
type RefExists func(ctx context.Context, code string) (bool, error)

// RefCodes generates human readable, collision-checked reference codes of
// the form PREFIX-<unix ms base36>-<random>.
type RefCodes struct {
	exists RefExists
	now    func() time.Time
	random func(n int) string
}

// NewRefCodes returns a generator checking candidates against exists.
func NewRefCodes(exists RefExists, now func() time.Time) *RefCodes {
	if now == nil {
		now = time.Now
	}
	return &RefCodes{exists: exists, now: now, random: randomBase36}
}

// Next returns an unused code.  After maxRefAttempts collisions it appends
// four more random characters to the last candidate; if even that is
// taken the caller gets a Conflict.
func (g *RefCodes) Next(ctx context.Context, prefix string, randLen int) (string, error) {
	var code string
	for i := 0; i < maxRefAttempts; i++ {
		code = g.candidate(prefix, randLen)
		taken, err := g.exists(ctx, code)
		if err != nil {
			return "", apperr.Internal("check reference code", err)
		}
		if !taken {
			return code, nil
		}
	}
	code += "-" + g.random(4)
	taken, err := g.exists(ctx, code)
	if err != nil {
		return "", apperr.Internal("check reference code", err)
	}
	if taken {
		return "", apperr.Conflict("could not allocate a booking reference, please retry")
	}
	return code, nil
}

func (g *RefCodes) candidate(prefix string, randLen int) string {
	ts := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	return prefix + "-" + ts + "-" + g.random(randLen)
}

// randomBase36 draws n uniformly distributed base36 characters.
func randomBase36(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n+8)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic(err)
		}
		for _, b := range buf {
			// 252 is the largest multiple of 36 below 256.
			if b < 252 && len(out) < n {
				out = append(out, base36[b%36])
			}
		}
	}
	return string(out)
}
