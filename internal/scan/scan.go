// Package scan turns a raw camera payload into an inventory lookup. Each
// scan gesture walks Idle -> Decoding -> Resolving -> a terminal outcome,
// and stays there until the user explicitly asks to scan again.
package scan

import (
	"log/slog"
	"sync"

	"github.com/hud-code/binqr-server/internal/model"
	"github.com/hud-code/binqr-server/internal/qr"
)

type State string

const (
	StateIdle          State = "idle"
	StateDecoding      State = "decoding"
	StateResolving     State = "resolving"
	StateFound         State = "found"
	StateNotRecognized State = "not_recognized"
	StateNotFound      State = "not_found"
	StateLookupError   State = "lookup_error"
)

// Result is the terminal outcome of one scan gesture.
type Result struct {
	State   State      `json:"state"`
	Box     *model.Box `json:"box,omitempty"`
	Payload string     `json:"payload,omitempty"` // raw payload, for diagnostics
	Retry   bool       `json:"retry"`             // true when an explicit retry may succeed
}

// Finder is the single store lookup the resolver needs.
type Finder interface {
	FindByQRCode(ownerID, code string) (*model.Box, error)
}

// Resolver runs at most one resolution at a time. Payloads arriving while a
// scan is decoding or resolving are ignored, and a terminal state holds
// until Reset, so a torn or unreadable symbol cannot hammer the store.
type Resolver struct {
	mu     sync.Mutex
	state  State
	last   Result
	finder Finder
	logger *slog.Logger
}

func NewResolver(finder Finder, logger *slog.Logger) *Resolver {
	return &Resolver{
		state:  StateIdle,
		finder: finder,
		logger: logger,
	}
}

// State returns the resolver's current state.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Last returns the most recent terminal result.
func (r *Resolver) Last() Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Resolve processes one payload. The second return is false when the frame
// was ignored because a scan is already in flight or unacknowledged; the
// previous result is returned in that case.
func (r *Resolver) Resolve(ownerID, payload string) (Result, bool) {
	r.mu.Lock()
	if r.state != StateIdle {
		last := r.last
		r.mu.Unlock()
		return last, false
	}
	r.state = StateDecoding
	r.mu.Unlock()

	boxID, err := qr.Decode(payload)
	if err != nil {
		// Not one of ours. The store is never consulted.
		return r.finish(Result{State: StateNotRecognized, Payload: payload, Retry: true})
	}

	r.mu.Lock()
	r.state = StateResolving
	r.mu.Unlock()

	box, err := r.finder.FindByQRCode(ownerID, payload)
	if err != nil {
		r.logger.Error("qr lookup failed", "box_id", boxID, "error", err)
		return r.finish(Result{State: StateLookupError, Payload: payload, Retry: true})
	}
	if box == nil {
		return r.finish(Result{State: StateNotFound, Payload: payload, Retry: true})
	}
	return r.finish(Result{State: StateFound, Box: box})
}

// Reset returns the resolver to Idle. This is the explicit "scan again"
// action; nothing transitions out of a terminal state without it.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.state = StateIdle
	r.last = Result{State: StateIdle}
	r.mu.Unlock()
}

func (r *Resolver) finish(res Result) (Result, bool) {
	r.mu.Lock()
	r.state = res.State
	r.last = res
	r.mu.Unlock()
	return res, true
}
