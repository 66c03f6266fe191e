// Package core provides the foundational domain types and interfaces shared by
// every tutormesh package. It defines:
//
//   - Agents (tutor personas whose behaviour lives entirely in data)
//   - Sessions (one per user, holding the active routing Mode)
//   - Conversations (one thread per session/agent pair) and their Messages
//   - Interaction logs and aggregate Stats for the audit side channel
//   - Pluggable Store, AgentCatalog, AuditSink and AuditReader interfaces
//
// The package keeps implementation concerns (persistence, routing, model
// access) out of scope, exposing small interfaces so backends can be swapped
// without touching orchestration code.
package core
