package lobby

import (
	"net/netip"
	"sync"
	"time"
)

// frameLimiter tracks inbound frame pressure per connection. Frames over
// the per-second allowance are still processed; what gets punished is
// keeping the pressure up. Each second in which the allowance is blown
// counts one strike, an unbroken run of maxStrikes such seconds kills
// the connection, and any quiet second clears the run.
//
// Owned by a single goroutine, so no locking.
type frameLimiter struct {
	perSecond  int
	maxStrikes int

	window  int64 // unix second being counted
	count   int
	strikes int
}

func newFrameLimiter(perSecond, maxStrikes int) *frameLimiter {
	return &frameLimiter{perSecond: perSecond, maxStrikes: maxStrikes}
}

// note registers one inbound frame. It reports true when the connection
// has earned its disconnect.
func (l *frameLimiter) note(now time.Time) bool {
	sec := now.Unix()
	if sec != l.window {
		// A gap second, or a window that stayed within the allowance,
		// breaks the streak.
		if sec > l.window+1 || l.count <= l.perSecond {
			l.strikes = 0
		}
		l.window = sec
		l.count = 0
	}

	l.count++
	if l.count == l.perSecond+1 {
		l.strikes++
		if l.strikes >= l.maxStrikes {
			return true
		}
	}
	return false
}

// ipGate throttles how often one remote IP may open fresh connections.
type ipGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[netip.Addr]time.Time
}

func newIPGate(interval time.Duration) *ipGate {
	return &ipGate{
		interval: interval,
		last:     make(map[netip.Addr]time.Time),
	}
}

// allow reports whether addr may connect now, recording the attempt when
// it may. Rejected attempts do not refresh the window.
func (g *ipGate) allow(addr netip.Addr, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if seen, ok := g.last[addr]; ok && now.Sub(seen) < g.interval {
		return false
	}

	if len(g.last) >= 4096 {
		g.sweep(now)
	}
	g.last[addr] = now
	return true
}

// sweep drops entries old enough to be meaningless. Called with mu held.
func (g *ipGate) sweep(now time.Time) {
	for addr, seen := range g.last {
		if now.Sub(seen) >= g.interval {
			delete(g.last, addr)
		}
	}
}
