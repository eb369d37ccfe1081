// Package evaluator walks a linearized proof and reconstructs, for every
// attestation leaf, the message value the proof claims was committed at
// that point.
package evaluator

import (
	"errors"

	"otsgo/internal/proof"
)

// ErrInsufficientSteps indicates the steps ran out while a branch was
// still open (no attestation terminated it).
var ErrInsufficientSteps = errors.New("evaluator: insufficient steps")

// ErrTrailingSteps indicates steps remained after every branch had already
// closed.
var ErrTrailingSteps = errors.New("evaluator: trailing steps")

// Event is emitted for every step as it is processed, carrying the message
// value the step saw.
type Event struct {
	Step proof.Step
	Msg  []byte
}

// Evaluator replays a Steps sequence starting from an initial message, one
// step at a time. A call to Next that returns an error leaves the
// evaluator's position unchanged, so retrying is idempotent.
type Evaluator struct {
	steps   proof.Steps
	pos     int
	stack   [][]byte
	current []byte
}

// New creates an Evaluator over steps starting from initialMsg.
func New(initialMsg []byte, steps proof.Steps) *Evaluator {
	return &Evaluator{steps: steps, current: initialMsg}
}

// Next advances the evaluator by one step, returning the event produced,
// or (Event{}, false, nil) once every step has been consumed. Call Finish
// afterward to confirm the proof terminated cleanly.
func (e *Evaluator) Next() (Event, bool, error) {
	if e.pos >= len(e.steps) {
		return Event{}, false, nil
	}

	// A prior Attestation already closed every open branch, yet steps
	// remain: the proof tree is malformed (only reachable with a
	// hand-built Steps value; anything round-tripped through
	// proof.Deserialize is well-formed by construction).
	if e.current == nil {
		return Event{}, false, ErrTrailingSteps
	}

	step := e.steps[e.pos]
	ev := Event{Step: step, Msg: e.current}

	switch step.Kind {
	case proof.KindOp:
		next, err := step.Op.Eval(e.current)
		if err != nil {
			return Event{}, false, err
		}
		e.current = next

	case proof.KindFork:
		e.stack = append(e.stack, e.current)
		// current is unchanged: both branches inherit the parent message.

	case proof.KindAttestation:
		if n := len(e.stack); n > 0 {
			e.current = e.stack[n-1]
			e.stack = e.stack[:n-1]
		} else {
			e.current = nil
		}

	default:
		return Event{}, false, proof.ErrUnknownOp
	}

	e.pos++
	return ev, true, nil
}

// Finish confirms the evaluator reached a well-formed end state after Next
// has returned ok=false: no branch left open.
func (e *Evaluator) Finish() error {
	if e.current != nil {
		return ErrInsufficientSteps
	}
	return nil
}

// Run drives an Evaluator to completion, returning every event in order.
func Run(initialMsg []byte, steps proof.Steps) ([]Event, error) {
	e := New(initialMsg, steps)
	var events []Event
	for {
		ev, ok, err := e.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		events = append(events, ev)
	}
	if err := e.Finish(); err != nil {
		return nil, err
	}
	return events, nil
}
