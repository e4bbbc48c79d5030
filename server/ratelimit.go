package server

import (
	"net"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type ipEntry struct {
	last    time.Time
	strikes int
}

// RateLimiter keeps one entry per client address. A request arriving sooner
// than MinInterval after the last accepted one counts as a strike; after
// more than Tolerance strikes the address is refused. Each entry is updated
// atomically on its own, so addresses never contend with each other.
type RateLimiter struct {
	MinInterval time.Duration
	Tolerance   int

	table *xsync.MapOf[string, ipEntry]
	now   func() time.Time
}

func NewRateLimiter(minInterval time.Duration, tolerance int) *RateLimiter {
	return &RateLimiter{
		MinInterval: minInterval,
		Tolerance:   tolerance,
		table:       xsync.NewMapOf[string, ipEntry](),
		now:         time.Now,
	}
}

// Allow records a request from addr and reports whether it may proceed.
func (l *RateLimiter) Allow(addr string) bool {
	allowed := true
	l.table.Compute(addr, func(e ipEntry, loaded bool) (ipEntry, bool) {
		now := l.now()
		if !loaded {
			return ipEntry{last: now}, false
		}
		if e.strikes > l.Tolerance {
			allowed = false
			return e, false
		}
		if now.Sub(e.last) < l.MinInterval {
			e.strikes++
		} else {
			e.last = now
		}
		return e, false
	})
	return allowed
}

// Len is the number of tracked addresses.
func (l *RateLimiter) Len() int { return l.table.Size() }

// Middleware refuses requests from addresses over the limit with a 429 and
// closes their connection.
func (l *RateLimiter) Middleware() Middleware {
	return func(next RouteHandler) RouteHandler {
		return func(req *Request) *Response {
			if !l.Allow(clientIP(req.RemoteAddr())) {
				resp := Text(http.StatusTooManyRequests, ErrRateLimited.Error())
				resp.Close = true
				return resp
			}
			return next(req)
		}
	}
}

func clientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
