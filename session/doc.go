// Package session houses the in-memory implementation of core.Store.
// The interface itself (and the Session, Conversation and Message records)
// live in the core package to centralize domain contracts. Keeping only
// implementations here prevents higher level packages from depending on
// concrete storage.
//
// A durable SQLite backend lives in the sqlite package; only the wiring layer
// decides which implementation to instantiate.
package session
