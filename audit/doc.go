// Package audit records interaction logs and aggregates them into stats.
//
// Writes go through a Recorder, which never blocks or fails the caller:
// records are handed to the sink on a detached goroutine and any failure is
// logged and discarded.
package audit
