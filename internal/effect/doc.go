// Package effect defines the contract between the engine and whatever
// performs an authorized action, plus a few stock handlers.
//
// The engine calls a Handler only from Execute, after the action has been
// marked executed. A non-nil error from the handler makes the engine roll the
// whole execution back, so handlers should not leave partial side effects
// behind when they fail.
package effect
