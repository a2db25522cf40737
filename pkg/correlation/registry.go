// Package correlation pairs asynchronous requests with the results that later
// arrive for them, keyed by a small integer token.
package correlation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const logPrefix = "correlation:registry"

const (
	// ReservedCeiling is the highest request code reserved for callers that
	// choose their own codes. Allocated tokens are always above it.
	ReservedCeiling = 10

	// tokenLimit bounds tokens to the positive 16-bit signed range.
	tokenLimit = 1 << 15
)

var (
	// ErrTimeout is delivered to a callback whose result never arrived.
	ErrTimeout = errors.New("correlation: request timed out")
	// ErrTokenInUse is returned by Register for a code that is still pending.
	ErrTokenInUse = errors.New("correlation: token in use")
	// ErrTokenOutOfRange is returned by Register for a code above ReservedCeiling.
	ErrTokenOutOfRange = errors.New("correlation: token out of reserved range")
)

// Outcome is the result delivered to a pending callback. Code follows the
// platform convention of the request type (grant results map to 1 / -1).
type Outcome struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data,omitempty"`
	Err  error           `json:"-"`
}

// Callback receives the outcome of exactly one request.
type Callback func(Outcome)

// Observer is notified about registry activity. Implementations must be safe
// for concurrent use.
type Observer interface {
	TokenAllocated()
	TokenResolved()
	TokenCanceled(n int)
	TokenTimedOut()
	PendingTokens(n int)
}

// Options configures a Registry. The zero value is usable.
type Options struct {
	// Timeout resolves pending entries with ErrTimeout after this long.
	// Zero waits forever.
	Timeout time.Duration
	// Rand overrides the token source (tests).
	Rand *rand.Rand
	// Observer receives activity counts.
	Observer Observer
}

type entry struct {
	cb    Callback
	timer *time.Timer
}

// Registry maps pending tokens to their callbacks. It is safe for concurrent
// use: results may be resolved from any goroutine while new tokens are
// allocated elsewhere.
type Registry struct {
	mu       sync.Mutex
	pending  map[int]*entry
	rnd      *rand.Rand
	timeout  time.Duration
	observer Observer
	// expire runs timeout resolutions; nil runs them on the timer goroutine.
	expire func(fire func())
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	rnd := opts.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Registry{
		pending:  make(map[int]*entry),
		rnd:      rnd,
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
}

// Allocate stores cb under a fresh token in (ReservedCeiling, 1<<15) and
// returns the token. Collisions with pending tokens are retried.
func (r *Registry) Allocate(cb Callback) int {
	r.mu.Lock()
	var token int
	for {
		token = ReservedCeiling + 1 + r.rnd.IntN(tokenLimit-ReservedCeiling-1)
		if _, taken := r.pending[token]; !taken {
			break
		}
	}
	r.insertLocked(token, cb)
	n := len(r.pending)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.TokenAllocated()
		r.observer.PendingTokens(n)
	}
	slog.Debug(fmt.Sprintf("%s - allocated token=%d pending=%d", logPrefix, token, n))
	return token
}

// Register stores cb under a caller-chosen code in [0, ReservedCeiling].
func (r *Registry) Register(token int, cb Callback) error {
	if token < 0 || token > ReservedCeiling {
		return fmt.Errorf("%w: %d", ErrTokenOutOfRange, token)
	}
	r.mu.Lock()
	if _, taken := r.pending[token]; taken {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTokenInUse, token)
	}
	r.insertLocked(token, cb)
	n := len(r.pending)
	r.mu.Unlock()

	if r.observer != nil {
		r.observer.TokenAllocated()
		r.observer.PendingTokens(n)
	}
	return nil
}

func (r *Registry) insertLocked(token int, cb Callback) {
	e := &entry{cb: cb}
	if r.timeout > 0 {
		e.timer = time.AfterFunc(r.timeout, func() {
			r.runExpiry(func() {
				if r.resolveEntry(token, e, Outcome{Err: ErrTimeout}) && r.observer != nil {
					r.observer.TokenTimedOut()
				}
			})
		})
	}
	r.pending[token] = e
}

func (r *Registry) runExpiry(fire func()) {
	r.mu.Lock()
	expire := r.expire
	r.mu.Unlock()
	if expire == nil {
		fire()
		return
	}
	expire(fire)
}

// Resolve delivers o to the callback pending under token and frees the token.
// It returns false when nothing is pending (late, duplicate or unknown).
func (r *Registry) Resolve(token int, o Outcome) bool {
	return r.resolveEntry(token, nil, o)
}

// resolveEntry removes token when it is pending and, if want is non-nil,
// still bound to want. The callback runs outside the lock.
func (r *Registry) resolveEntry(token int, want *entry, o Outcome) bool {
	r.mu.Lock()
	e, ok := r.pending[token]
	if !ok || (want != nil && e != want) {
		r.mu.Unlock()
		return false
	}
	delete(r.pending, token)
	n := len(r.pending)
	r.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	if r.observer != nil {
		r.observer.TokenResolved()
		r.observer.PendingTokens(n)
	}
	if e.cb != nil {
		e.cb(o)
	}
	return true
}

// Cancel drops the entry for token without invoking its callback.
func (r *Registry) Cancel(token int) bool {
	r.mu.Lock()
	e, ok := r.pending[token]
	if ok {
		delete(r.pending, token)
	}
	n := len(r.pending)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	if r.observer != nil {
		r.observer.TokenCanceled(1)
		r.observer.PendingTokens(n)
	}
	return true
}

// CancelAll drops every pending entry without invoking callbacks. It is
// meant for owner teardown and returns the number of entries dropped.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	dropped := r.pending
	r.pending = make(map[int]*entry)
	r.mu.Unlock()

	for _, e := range dropped {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	if r.observer != nil && len(dropped) > 0 {
		r.observer.TokenCanceled(len(dropped))
		r.observer.PendingTokens(0)
	}
	if len(dropped) > 0 {
		slog.Info(fmt.Sprintf("%s - dropped %d pending requests", logPrefix, len(dropped)))
	}
	return len(dropped)
}

// Pending returns the number of unresolved tokens.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// IsPending reports whether token is awaiting a result.
func (r *Registry) IsPending(token int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[token]
	return ok
}
