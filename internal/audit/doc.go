// Package audit implements async event dispatching for security-relevant operations
// such as session sign-in, eviction, OTP verification, and passkey ceremonies.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//     Event types named in Config.Critical always wait for room.
//   - [Event]: structured audit record with timestamp, type, user, session, shop, IP, metadata.
//
// # What this package must NOT do
//
//   - Decide which events to emit; the Engine owns that.
//   - Import havenAuth or any sibling internal package.
package audit
