package mutate

import (
	"context"
	"errors"
	"fmt"
)

// ErrBadTransition is returned when a Flow method is called in a state that
// does not allow it.
var ErrBadTransition = errors.New("mutate: illegal flow transition")

type Kind int

const (
	KindCreate Kind = iota
	KindDelete
	KindLabel
	KindGenerate
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	case KindLabel:
		return "label"
	case KindGenerate:
		return "generate"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type State int

const (
	Idle State = iota
	Confirming
	InFlight
	Resolved
)

func (s State) String() string {
	return [...]string{"idle", "confirming", "in-flight", "resolved"}[s]
}

// Input is what the operator typed into the modal.
type Input struct {
	ID     string
	Label  string
	Target string
}

// Outcome is the result shown once a command resolves.
type Outcome struct {
	Err     error
	Message string
	// ID is the canonical id after a create, or the target id otherwise.
	ID  string
	URL string
}

func (o Outcome) Failed() bool { return o.Err != nil }

// Request is a submitted command; Seq ties a Resolve back to its Submit.
type Request struct {
	Seq   uint64
	Kind  Kind
	Input Input
}

// Flow is the modal state machine:
//
//	Idle -> Confirming -> InFlight -> Resolved -> Idle
//
// Cancel leaves Confirming for Idle. Dismissing a failed outcome returns to
// Confirming with the input intact so it can be corrected.
type Flow struct {
	state   State
	kind    Kind
	input   Input
	outcome Outcome
	seq     uint64
}

func (f *Flow) State() State     { return f.state }
func (f *Flow) Kind() Kind       { return f.kind }
func (f *Flow) Input() Input     { return f.input }
func (f *Flow) Outcome() Outcome { return f.outcome }
func (f *Flow) Active() bool     { return f.state != Idle }

// Open starts a command of kind k with the given initial input.
func (f *Flow) Open(k Kind, in Input) error {
	if f.state != Idle {
		return fmt.Errorf("open %s while %s: %w", k, f.state, ErrBadTransition)
	}
	f.state, f.kind, f.input, f.outcome = Confirming, k, in, Outcome{}
	return nil
}

// Edit replaces the pending input while confirming.
func (f *Flow) Edit(in Input) error {
	if f.state != Confirming {
		return fmt.Errorf("edit while %s: %w", f.state, ErrBadTransition)
	}
	f.input = in
	return nil
}

func (f *Flow) Cancel() error {
	if f.state != Confirming {
		return fmt.Errorf("cancel while %s: %w", f.state, ErrBadTransition)
	}
	f.reset()
	return nil
}

// Submit moves to InFlight and returns the request to execute.
func (f *Flow) Submit() (Request, error) {
	if f.state != Confirming {
		return Request{}, fmt.Errorf("submit while %s: %w", f.state, ErrBadTransition)
	}
	f.seq++
	f.state = InFlight
	return Request{Seq: f.seq, Kind: f.kind, Input: f.input}, nil
}

// Resolve records the outcome of the in-flight request with sequence seq.
func (f *Flow) Resolve(seq uint64, o Outcome) error {
	if f.state != InFlight || seq != f.seq {
		return fmt.Errorf("resolve #%d while %s: %w", seq, f.state, ErrBadTransition)
	}
	f.state, f.outcome = Resolved, o
	return nil
}

// Dismiss closes a resolved modal. After a failure the flow goes back to
// Confirming and reports true.
func (f *Flow) Dismiss() (retry bool, err error) {
	if f.state != Resolved {
		return false, fmt.Errorf("dismiss while %s: %w", f.state, ErrBadTransition)
	}
	if f.outcome.Failed() {
		f.state = Confirming
		return true, nil
	}
	f.reset()
	return false, nil
}

func (f *Flow) reset() {
	f.state, f.input, f.outcome = Idle, Input{}, Outcome{}
}

// Do executes req through g. It never retries.
func (g *Gateway) Do(ctx context.Context, req Request) Outcome {
	in := req.Input
	switch req.Kind {
	case KindCreate:
		id, err := g.Create(ctx, in.ID, in.Label)
		if err != nil {
			return Outcome{Err: err, ID: in.ID}
		}
		return Outcome{ID: id, Message: "Created " + id}
	case KindDelete:
		if err := g.Delete(ctx, in.ID); err != nil {
			return Outcome{Err: err, ID: in.ID}
		}
		return Outcome{ID: in.ID, Message: "Deleted " + in.ID}
	case KindLabel:
		if err := g.UpdateLabel(ctx, in.ID, in.Label); err != nil {
			return Outcome{Err: err, ID: in.ID}
		}
		return Outcome{ID: in.ID, Message: "Label updated"}
	case KindGenerate:
		u, err := g.GenerateLink(ctx, in.ID, in.Target)
		if err != nil {
			return Outcome{Err: err, ID: in.ID}
		}
		return Outcome{ID: in.ID, URL: u, Message: "Tracking link ready"}
	}
	return Outcome{Err: fmt.Errorf("unknown command %s", req.Kind)}
}
