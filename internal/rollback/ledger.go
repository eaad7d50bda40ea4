// Package rollback provides an ordered ledger of compensating actions.
//
// A setup run registers one action after each phase commits; on failure
// the ledger unwinds in strict LIFO order. A failing action never stops
// the unwind of earlier-registered actions.
package rollback

import "fmt"

// Action undoes the observable effect of one committed phase.
type Action struct {
	Label string
	Fn    func() error
}

// Failure records a compensating action that did not complete.
type Failure struct {
	Label string
	Err   error
}

// Ledger is an ordered stack of compensating actions. It is owned by a
// single setup run and must not be shared across runs.
type Ledger struct {
	actions []Action
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Register appends a compensating action. Registration never fails.
func (l *Ledger) Register(label string, fn func() error) {
	l.actions = append(l.actions, Action{Label: label, Fn: fn})
}

// Len returns the number of registered actions.
func (l *Ledger) Len() int {
	return len(l.actions)
}

// Unwind executes all registered actions in reverse registration order
// and clears the ledger. An action's error (or panic) is captured as a
// Failure and the unwind continues with the next entry. Calling Unwind
// on an empty ledger is a no-op, so a second call after an unwind
// returns nil.
func (l *Ledger) Unwind() []Failure {
	var failures []Failure
	for i := len(l.actions) - 1; i >= 0; i-- {
		a := l.actions[i]
		if err := runAction(a); err != nil {
			failures = append(failures, Failure{Label: a.Label, Err: err})
		}
	}
	l.actions = nil
	return failures
}

// Discard empties the ledger without executing anything. Called when
// the run commits and the compensations are no longer needed.
func (l *Ledger) Discard() {
	l.actions = nil
}

func runAction(a Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.Fn()
}
