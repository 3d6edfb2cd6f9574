// Package ratelimit implements the token-bucket, source-banning packet rate
// limiter used by SIP transport listeners.
//
// The design mirrors SIPStack::setTransportThreshold from the original
// implementation: an aggregate packets-per-second ceiling guards the listener
// as a whole, while a lower per-source violation rate identifies abusive
// peers and bans them for a configurable lifetime.
package ratelimit

import (
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rromrrom/oss-core/internal/syncutil"
)

// Config configures a [Limiter].
type Config struct {
	// PPSThreshold is the aggregate packets-per-second ceiling applied across all sources.
	// Zero disables the aggregate check.
	PPSThreshold int
	// ViolationRate is the per-source packets-per-second ceiling. A source exceeding it
	// is placed on the ban list. Zero disables per-source tracking and banning.
	ViolationRate int
	// BanLifetime is how long a banned source stays on the ban list.
	BanLifetime time.Duration
	// Whitelist holds addresses and networks exempt from both the aggregate and
	// per-source checks, and from banning.
	Whitelist []netip.Prefix
	// NullRoute, if set, is invoked with the offending source address whenever it is
	// newly banned. It is meant to let the caller install a host-level drop rule
	// (auto-null-route-on-ban).
	NullRoute func(netip.Addr)
}

// Enabled reports whether the configuration enables rate limiting at all, matching
// SIPStack::setTransportThreshold's guard (aggregate threshold must exceed the
// violation rate, otherwise the limiter is a no-op).
func (c Config) Enabled() bool {
	return c.PPSThreshold > 0 && c.PPSThreshold > c.ViolationRate
}

// ParsePacketRateRatio parses the "violation/aggregate/banlife" config string
// (the packet-rate-ratio setting), e.g. "50/500/60".
func ParsePacketRateRatio(s string) (violationRate, ppsThreshold int, banLifetime time.Duration, err error) {
	toks := strings.Split(s, "/")
	if len(toks) != 3 {
		return 0, 0, 0, strconv.ErrSyntax
	}
	if violationRate, err = strconv.Atoi(strings.TrimSpace(toks[0])); err != nil {
		return 0, 0, 0, err
	}
	if ppsThreshold, err = strconv.Atoi(strings.TrimSpace(toks[1])); err != nil {
		return 0, 0, 0, err
	}
	banlife, err := strconv.Atoi(strings.TrimSpace(toks[2]))
	if err != nil {
		return 0, 0, 0, err
	}
	return violationRate, ppsThreshold, time.Duration(banlife) * time.Second, nil
}

// bucket is a simple token bucket refilled continuously at rate tokens/sec.
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	rate       float64
	tokens     float64
	lastRefill time.Time
}

func newBucket(ratePerSec int, now time.Time) *bucket {
	r := float64(ratePerSec)
	return &bucket{capacity: r, rate: r, tokens: r, lastRefill: now}
}

// take consumes a single token, refilling first based on elapsed time.
// It reports whether the token was available.
func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens += elapsed.Seconds() * b.rate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
		b.lastRefill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limiter is a token-bucket rate limiter with a per-source violation ban list
// and an IP/CIDR whitelist.
//
// The zero value is not usable; construct with [New].
type Limiter struct {
	cfg Config

	aggregate *bucket
	sources   *syncutil.ShardMap[netip.Addr, *bucket]
	bans      *syncutil.ShardMap[netip.Addr, time.Time]

	now func() time.Time

	stop chan struct{}
	once sync.Once
}

// New creates a [Limiter] from cfg. If cfg is not [Config.Enabled], the
// returned Limiter's [Limiter.Allow] always reports true.
func New(cfg Config) *Limiter {
	return newWithClock(cfg, time.Now)
}

func newWithClock(cfg Config, now func() time.Time) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		sources: syncutil.NewShardMap[netip.Addr, *bucket](),
		bans:    syncutil.NewShardMap[netip.Addr, time.Time](),
		now:     now,
		stop:    make(chan struct{}),
	}
	if cfg.Enabled() {
		l.aggregate = newBucket(cfg.PPSThreshold, l.now())
	}
	return l
}

// SetClock overrides the time source used by the limiter. It exists for tests
// that need to simulate the passage of time without sleeping.
func (l *Limiter) SetClock(now func() time.Time) {
	l.now = now
	if l.aggregate != nil {
		l.aggregate.lastRefill = now()
	}
}

// Run starts the janitor goroutine that sweeps expired ban entries every second.
// It returns a stop function that must be called to release the goroutine.
func (l *Limiter) Run() (stop func()) {
	if !l.cfg.Enabled() {
		return func() {}
	}

	tk := time.NewTicker(time.Second)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-l.stop:
				tk.Stop()
				return
			case t := <-tk.C:
				l.sweep(t)
			}
		}
	}()

	return func() {
		l.once.Do(func() { close(l.stop) })
		<-done
	}
}

func (l *Limiter) sweep(now time.Time) {
	for addr, until := range l.bans.Items() {
		if !now.Before(until) {
			l.bans.Del(addr)
		}
	}
}

// Whitelisted reports whether addr is exempt from rate limiting and banning.
func (l *Limiter) Whitelisted(addr netip.Addr) bool {
	for _, p := range l.cfg.Whitelist {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Banned reports whether addr is currently on the ban list.
func (l *Limiter) Banned(addr netip.Addr) bool {
	until, ok := l.bans.Get(addr)
	if !ok {
		return false
	}
	return l.now().Before(until)
}

// Allow reports whether a packet from addr may proceed. As a side effect, a
// source that exceeds the per-source violation rate is added to the ban list
// and, if configured, reported through [Config.NullRoute].
func (l *Limiter) Allow(addr netip.Addr) bool {
	if !l.cfg.Enabled() {
		return true
	}
	if l.Whitelisted(addr) {
		return true
	}

	now := l.now()

	if until, ok := l.bans.Get(addr); ok {
		if now.Before(until) {
			return false
		}
		l.bans.Del(addr)
	}

	if l.aggregate != nil && !l.aggregate.take(now) {
		return false
	}

	if l.cfg.ViolationRate <= 0 {
		return true
	}

	b, ok := l.sources.Get(addr)
	if !ok {
		b = newBucket(l.cfg.ViolationRate, now)
		l.sources.Set(addr, b)
	}
	if b.take(now) {
		return true
	}

	l.ban(addr, now)
	return false
}

func (l *Limiter) ban(addr netip.Addr, now time.Time) {
	l.bans.Set(addr, now.Add(l.cfg.BanLifetime))
	l.sources.Del(addr)
	if l.cfg.NullRoute != nil {
		l.cfg.NullRoute(addr)
	}
}
