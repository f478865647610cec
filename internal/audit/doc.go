// Package audit buffers session lifecycle events and hands them to a sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zerolog, no-op).
//   - [Dispatcher]: bounded async relay, drop-if-full or wait-if-full.
//   - [Event]: one sign-in, renewal, clear, forced sign-out or sync record.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The engine decides which events
// to emit and fills them in.
//
// # What this package must NOT do
//
//   - Accept or record access or renewal credentials.
//   - Import goSession or any sibling internal package.
//   - Block the emitting goroutine when DropIfFull is set.
package audit
