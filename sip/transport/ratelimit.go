package transport

import (
	"time"

	"github.com/rromrrom/oss-core/internal/ratelimit"
)

// RateLimiter is the token-bucket, source-banning packet rate limiter applied
// to inbound traffic on a transport's listener(s).
//
// A RateLimiter is shared across every listener of a [Layer] so that the
// aggregate packets-per-second ceiling is enforced across all configured
// endpoints, as in the original SIPStack::setTransportThreshold.
type RateLimiter = ratelimit.Limiter

// RateLimiterConfig configures a [RateLimiter].
type RateLimiterConfig = ratelimit.Config

// NewRateLimiter creates a [RateLimiter] from cfg.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return ratelimit.New(cfg)
}

// ParsePacketRateRatio parses the "violation/aggregate/banlife" packet-rate-ratio
// setting, e.g. "50/500/60".
func ParsePacketRateRatio(s string) (violationRate, ppsThreshold int, banLifetime time.Duration, err error) {
	return ratelimit.ParsePacketRateRatio(s)
}
