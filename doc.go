// Package kstate is a small shared-state library for cooperating
// processes on a single host.
//
// A State subscribes to a named, page-sized region of POSIX shared
// memory and gives read-only access to its current bytes. A
// Transaction snapshots a State's bytes, lets the caller build a new
// version privately, and commits it back with optimistic concurrency
// control: the commit succeeds only if nothing else has changed the
// region since the snapshot was taken, and fails otherwise so the
// caller can retry or abort.
//
// kstate does not arbitrate between concurrent writers beyond this
// compare-and-copy check, and does not order or queue commits; see the
// package's design notes for the concurrency model this implies.
package kstate
