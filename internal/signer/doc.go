// Package signer defines signer identities and the roster of principals
// allowed to propose, confirm, and execute actions.
//
// A Roster is not safe for concurrent use; the engine that owns it
// serializes access.
package signer
