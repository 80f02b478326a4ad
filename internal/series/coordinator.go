package series

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/amasendi/ridepool-backend/internal/models"
)

// Variant says what the confirmation session is for.
type Variant string

const (
	VariantEdit   Variant = "edit"
	VariantDelete Variant = "delete"
)

// Phase is the single tagged state of a session. One field instead of a set
// of booleans that could drift apart.
type Phase string

const (
	PhaseOpen       Phase = "open"
	PhaseConfirming Phase = "confirming"
)

// ErrConfirmInFlight is returned when a session is mid-confirmation: no
// second confirm, no cancel, no reopen until the outstanding call settles.
var ErrConfirmInFlight = errors.New("a confirmation is already in progress")

// ErrNoSession is returned for select/confirm against a session that was
// never opened or has already closed.
var ErrNoSession = errors.New("no open confirmation session")

type sessionKey struct {
	requesterID uint
	anchorID    uint
}

type session struct {
	phase    Phase
	variant  Variant
	anchor   models.Occurrence
	siblings []models.Occurrence
	options  []Option
	selected Scope
}

// Coordinator tracks one confirmation session per (requester, anchor).
// Opening computes the per-scope counts, the user may reselect among the
// available options, and Confirm runs the mutation exactly once: a racing
// second confirm is rejected rather than dispatched twice. An abandoned
// session costs nothing; closing it never cancels a dispatched mutation.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[sessionKey]*session
}

func NewCoordinator() *Coordinator {
	return &Coordinator{sessions: make(map[sessionKey]*session)}
}

// Open starts (or restarts) a session. Default selection is single.
func (c *Coordinator) Open(requesterID uint, variant Variant, anchor models.Occurrence, siblings []models.Occurrence) ([]Option, error) {
	if variant != VariantEdit && variant != VariantDelete {
		return nil, fmt.Errorf("%w: unknown variant %q", ErrValidation, variant)
	}
	key := sessionKey{requesterID: requesterID, anchorID: anchor.ID}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[key]; ok && s.phase == PhaseConfirming {
		return nil, ErrConfirmInFlight
	}
	s := &session{
		phase:    PhaseOpen,
		variant:  variant,
		anchor:   anchor,
		siblings: siblings,
		options:  ScopeOptions(&anchor, siblings),
		selected: ScopeSingle,
	}
	c.sessions[key] = s
	return s.options, nil
}

// Select changes the session's scope. Disabled options are rejected.
func (c *Coordinator) Select(requesterID, anchorID uint, scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionKey{requesterID: requesterID, anchorID: anchorID}]
	if !ok {
		return ErrNoSession
	}
	if s.phase == PhaseConfirming {
		return ErrConfirmInFlight
	}
	for _, opt := range s.options {
		if opt.Scope == scope {
			if !opt.Available {
				return fmt.Errorf("%w: scope %s is not available here", ErrValidation, scope)
			}
			s.selected = scope
			return nil
		}
	}
	return fmt.Errorf("%w: unknown scope %q", ErrValidation, scope)
}

// Selected returns the session's current scope choice.
func (c *Coordinator) Selected(requesterID, anchorID uint) (Scope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[sessionKey{requesterID: requesterID, anchorID: anchorID}]
	if !ok {
		return "", ErrNoSession
	}
	return s.selected, nil
}

// Confirm dispatches the mutation through do with the selected scope. The
// session is Confirming while the call is outstanding and closes when it
// settles, success or failure. A concurrent confirm or cancel during that
// window gets ErrConfirmInFlight.
func (c *Coordinator) Confirm(ctx context.Context, requesterID, anchorID uint, do func(ctx context.Context, scope Scope) error) error {
	key := sessionKey{requesterID: requesterID, anchorID: anchorID}

	c.mu.Lock()
	s, ok := c.sessions[key]
	if !ok {
		c.mu.Unlock()
		return ErrNoSession
	}
	if s.phase == PhaseConfirming {
		c.mu.Unlock()
		return ErrConfirmInFlight
	}
	s.phase = PhaseConfirming
	scope := s.selected
	c.mu.Unlock()

	err := do(ctx, scope)

	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
	return err
}

// Run is the non-interactive confirm path: it latches a Confirming session
// for (requester, anchor), runs do with the explicit scope, and closes the
// session when the call settles. A request racing an outstanding confirm on
// the same anchor gets ErrConfirmInFlight instead of a second dispatch.
func (c *Coordinator) Run(ctx context.Context, requesterID, anchorID uint, scope Scope, do func(ctx context.Context, scope Scope) error) error {
	key := sessionKey{requesterID: requesterID, anchorID: anchorID}

	c.mu.Lock()
	s, ok := c.sessions[key]
	if ok && s.phase == PhaseConfirming {
		c.mu.Unlock()
		return ErrConfirmInFlight
	}
	if !ok {
		s = &session{selected: scope}
		c.sessions[key] = s
	}
	s.phase = PhaseConfirming
	c.mu.Unlock()

	err := do(ctx, scope)

	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
	return err
}

// Cancel closes an open session without mutating anything. Cancelling a
// session that is not open is a no-op; cancelling mid-confirmation is
// rejected.
func (c *Coordinator) Cancel(requesterID, anchorID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := sessionKey{requesterID: requesterID, anchorID: anchorID}
	s, ok := c.sessions[key]
	if !ok {
		return nil
	}
	if s.phase == PhaseConfirming {
		return ErrConfirmInFlight
	}
	delete(c.sessions, key)
	return nil
}
